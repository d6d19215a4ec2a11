package controller

import (
	"strings"

	"efrog/internal/judge/model"
	"efrog/internal/submit/service"
	"efrog/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmitController handles submission HTTP endpoints.
type SubmitController struct {
	submitService *service.SubmitService
}

// NewSubmitController creates a new SubmitController.
func NewSubmitController(submitService *service.SubmitService) *SubmitController {
	return &SubmitController{submitService: submitService}
}

// Create handles submission requests. Realtime mode answers 202 with
// the live channel path; sync mode blocks and answers 200 with the
// full outcome.
func (h *SubmitController) Create(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	userID := c.GetInt64("user_id")
	if userID <= 0 {
		response.BadRequest(c, "Invalid user")
		return
	}

	scored := true
	if req.Scored != nil {
		scored = *req.Scored
	}
	out, err := h.submitService.Submit(c.Request.Context(), service.SubmitInput{
		ProblemID:       req.ProblemID,
		Edition:         req.Edition,
		UserID:          userID,
		CompetitionID:   req.CompetitionID,
		Language:        req.Language,
		SourceCode:      req.SourceCode,
		Scored:          scored,
		Mode:            req.Mode,
		CheckerLanguage: req.CheckerLanguage,
		CheckerSource:   req.CheckerSource,
		IdempotencyKey:  strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if !out.Finished {
		response.Accepted(c, SubmitResponse{
			SubmissionID: out.SubmissionID,
			RealtimeURL:  out.RealtimeURL,
		})
		return
	}
	response.Success(c, ResultResponse{
		SubmissionID: out.SubmissionID,
		Checked:      true,
		State:        newStatePayload(out.State),
		CaseResults:  newCaseResultPayloads(out.CaseResults),
	})
}

// GetResult returns the persisted outcome, or a 202 with progress and
// the live channel path while the submission is still being judged.
func (h *SubmitController) GetResult(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	out, err := h.submitService.GetResult(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if out.Checked {
		response.Success(c, ResultResponse{
			SubmissionID: out.SubmissionID,
			Checked:      true,
			State:        newStatePayload(out.State),
			CaseResults:  newCaseResultPayloads(out.CaseResults),
		})
		return
	}
	pending := PendingResponse{
		SubmissionID: out.SubmissionID,
		RealtimeURL:  out.RealtimeURL,
	}
	if out.Snapshot != nil {
		pending.Phase = string(out.Snapshot.Phase)
		pending.TotalCases = out.Snapshot.TotalCases
		pending.DoneCases = out.Snapshot.DoneCases
	}
	response.Accepted(c, pending)
}

// GetSource returns submission source code.
func (h *SubmitController) GetSource(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	submission, err := h.submitService.GetSource(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SourceResponse{
		SubmissionID:  submission.SubmissionID,
		ProblemID:     submission.ProblemID,
		Edition:       submission.Edition,
		UserID:        submission.UserID,
		CompetitionID: submission.CompetitionID,
		Language:      submission.Language,
		SourceCode:    submission.SourceCode,
		CreatedAt:     submission.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// SubmitRequest defines submission payload.
type SubmitRequest struct {
	ProblemID       int64  `json:"problem_id" binding:"required"`
	Edition         int32  `json:"edition"`
	CompetitionID   string `json:"competition_id"`
	Language        string `json:"language" binding:"required"`
	SourceCode      string `json:"source_code" binding:"required"`
	Scored          *bool  `json:"scored"`
	Mode            string `json:"mode"`
	CheckerLanguage string `json:"checker_language"`
	CheckerSource   string `json:"checker_source"`
}

// SubmitResponse defines the accepted-submission payload.
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	RealtimeURL  string `json:"realtime_url"`
}

// PendingResponse describes a submission still being judged.
type PendingResponse struct {
	SubmissionID string `json:"submission_id"`
	Phase        string `json:"phase,omitempty"`
	TotalCases   int    `json:"total_cases,omitempty"`
	DoneCases    int    `json:"done_cases,omitempty"`
	RealtimeURL  string `json:"realtime_url"`
}

// ResultResponse defines the finished-submission payload.
type ResultResponse struct {
	SubmissionID string              `json:"submission_id"`
	Checked      bool                `json:"checked"`
	State        StatePayload        `json:"state"`
	CaseResults  []CaseResultPayload `json:"case_results"`
}

// StatePayload is the aggregate outcome.
type StatePayload struct {
	Compiled           bool   `json:"compiled"`
	CompilationDetails string `json:"compilation_details,omitempty"`
	CorrectScore       int    `json:"correct_score"`
	TotalScore         int    `json:"total_score"`
	Verdict            string `json:"verdict"`
}

// CaseResultPayload is one persisted per-case row.
type CaseResultPayload struct {
	TestCaseID int64  `json:"test_case_id"`
	Verdict    string `json:"verdict"`
	TimeMs     int64  `json:"time_ms"`
	CPUTimeMs  int64  `json:"cpu_time_ms"`
	MemoryKB   int64  `json:"memory_kb"`
}

// SourceResponse defines source query response payload.
type SourceResponse struct {
	SubmissionID  string `json:"submission_id"`
	ProblemID     int64  `json:"problem_id"`
	Edition       int32  `json:"edition"`
	UserID        int64  `json:"user_id"`
	CompetitionID string `json:"competition_id,omitempty"`
	Language      string `json:"language"`
	SourceCode    string `json:"source_code"`
	CreatedAt     string `json:"created_at"`
}

func newStatePayload(state *model.SubmissionState) StatePayload {
	if state == nil {
		return StatePayload{}
	}
	return StatePayload{
		Compiled:           state.Compiled,
		CompilationDetails: state.CompilationDetails,
		CorrectScore:       state.CorrectScore,
		TotalScore:         state.TotalScore,
		Verdict:            state.Verdict.String(),
	}
}

func newCaseResultPayloads(results []model.TestCaseResult) []CaseResultPayload {
	payloads := make([]CaseResultPayload, 0, len(results))
	for _, result := range results {
		payloads = append(payloads, CaseResultPayload{
			TestCaseID: result.TestCaseID,
			Verdict:    result.Verdict.String(),
			TimeMs:     result.TimeMs,
			CPUTimeMs:  result.CPUTimeMs,
			MemoryKB:   result.MemoryKB,
		})
	}
	return payloads
}
