package model

import (
	"encoding/json"

	"efrog/internal/judge/verdict"
)

// Realtime wire messages. These are the JSON bodies pushed over the
// live channel; the session log stores them already serialized so a
// reconnecting subscriber replays exactly what was sent.

// PartialMessage reports one finished test case.
type PartialMessage struct {
	Type   string            `json:"type"`
	Status int               `json:"status"`
	Count  int               `json:"count"`
	Result CaseResultPayload `json:"result"`
}

// CaseResultPayload is the per-case body inside a PartialMessage.
type CaseResultPayload struct {
	TestCaseID  int64  `json:"test_case_id"`
	Score       int    `json:"score"`
	Opened      bool   `json:"opened"`
	VerdictText string `json:"verdict_text"`
	TimeMs      int64  `json:"time_ms"`
	CPUTimeMs   int64  `json:"cpu_time_ms"`
	MemoryKB    int64  `json:"memory_kb"`
}

// TotalsMessage closes the stream with the final aggregate.
type TotalsMessage struct {
	Type   string        `json:"type"`
	Status int           `json:"status"`
	Totals TotalsPayload `json:"totals"`
}

// TotalsPayload is the final body inside a TotalsMessage.
type TotalsPayload struct {
	Compiled           bool   `json:"compiled"`
	CompilationDetails string `json:"compilation_details"`
	CorrectScore       int    `json:"correct_score"`
	TotalScore         int    `json:"total_score"`
	TotalVerdict       string `json:"total_verdict"`
}

// NoticeMessage carries conflict (409) and not-found (404) signals.
type NoticeMessage struct {
	Type    string `json:"type"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// NewPartialMessage serializes a partial result message. count is the
// number of cases reported so far, including this one.
func NewPartialMessage(count int, result TestCaseResult, score int, opened bool) string {
	msg := PartialMessage{
		Type:   "result",
		Status: 202,
		Count:  count,
		Result: CaseResultPayload{
			TestCaseID:  result.TestCaseID,
			Score:       score,
			Opened:      opened,
			VerdictText: result.Verdict.String(),
			TimeMs:      result.TimeMs,
			CPUTimeMs:   result.CPUTimeMs,
			MemoryKB:    result.MemoryKB,
		},
	}
	return mustMarshal(msg)
}

// NewTotalsMessage serializes the final totals message.
func NewTotalsMessage(state SubmissionState) string {
	msg := TotalsMessage{
		Type:   "totals",
		Status: 200,
		Totals: TotalsPayload{
			Compiled:           state.Compiled,
			CompilationDetails: state.CompilationDetails,
			CorrectScore:       state.CorrectScore,
			TotalScore:         state.TotalScore,
			TotalVerdict:       state.Verdict.String(),
		},
	}
	return mustMarshal(msg)
}

// NewNoticeMessage serializes a conflict or not-found message.
func NewNoticeMessage(status int, message string) string {
	return mustMarshal(NoticeMessage{Type: "message", Status: status, Message: message})
}

func mustMarshal(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// All message types marshal cleanly; a failure here is a
		// programming error.
		panic(err)
	}
	return string(data)
}

// FailedCaseResult builds the zero-timing result recorded for every
// case when compilation fails or the engine faults before running.
func FailedCaseResult(testCaseID int64, v verdict.Verdict) TestCaseResult {
	return TestCaseResult{TestCaseID: testCaseID, Verdict: v}
}
