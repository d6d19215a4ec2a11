// Package model defines problem records as the judge consumes them.
package model

import "time"

// Problem carries the judge-facing fields of one problem edition.
// Test case data itself lives in the edition's data pack; the SQL rows
// hold metadata only.
type Problem struct {
	ID         int64
	Edition    int32
	Title      string
	TimeLimitS float64
	MemLimitMB int

	PackKey  string
	PackHash string

	UseCustomChecker bool
	CheckerLanguage  string
	CheckerSource    string

	UpdatedAt time.Time
}

// TestCase is one case's metadata at a specific problem edition. The
// input and expected output are files in the pack named by Position.
// Opened cases may expose their data to the submitter in results.
type TestCase struct {
	ID        int64
	ProblemID int64
	Edition   int32
	Position  int
	Score     int
	Opened    bool
}
