// Package controller exposes the judging HTTP surface: the live-result
// websocket channel, the debug endpoint, and diagnostics.
package controller

import (
	"github.com/gin-gonic/gin"

	"efrog/internal/judge/model"
	"efrog/internal/judge/service"
	"efrog/pkg/utils/response"
)

// JudgeController handles debug runs and judging diagnostics.
type JudgeController struct {
	judge *service.Service
}

// NewJudgeController creates a new controller.
func NewJudgeController(judge *service.Service) *JudgeController {
	return &JudgeController{judge: judge}
}

// Debug compiles the submitted code and runs it against the caller's
// raw inputs, blocking until every input finished.
func (h *JudgeController) Debug(c *gin.Context) {
	var req DebugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	userID := c.GetInt64("user_id")
	if userID <= 0 {
		response.BadRequest(c, "Invalid user")
		return
	}

	results, err := h.judge.RunDebug(c.Request.Context(), model.DebugJob{
		SubmissionID: req.DebugID,
		UserID:       userID,
		ProblemID:    req.ProblemID,
		Language:     req.Language,
		SourceCode:   req.SourceCode,
		Inputs:       req.Inputs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	rows := make([]DebugRunPayload, 0, len(results))
	for _, result := range results {
		rows = append(rows, DebugRunPayload{
			InputIndex: result.InputIndex,
			Verdict:    result.Verdict.String(),
			TimeMs:     result.TimeMs,
			CPUTimeMs:  result.CPUTimeMs,
			MemoryKB:   result.MemoryKB,
			Output:     result.Output,
		})
	}
	response.Success(c, DebugResponse{Runs: rows})
}

// Diagnostics reports how many users currently hold judging slots and
// how many live sessions exist.
func (h *JudgeController) Diagnostics(c *gin.Context) {
	response.Success(c, DiagnosticsResponse{
		ActiveUsers:  h.judge.Gate().Active(),
		LiveSessions: h.judge.Hub().Len(),
	})
}

// DebugRequest defines the debug run payload.
type DebugRequest struct {
	DebugID    string   `json:"debug_id" binding:"required"`
	ProblemID  int64    `json:"problem_id"`
	Language   string   `json:"language" binding:"required"`
	SourceCode string   `json:"source_code" binding:"required"`
	Inputs     []string `json:"inputs" binding:"required"`
}

// DebugRunPayload is one per-input outcome.
type DebugRunPayload struct {
	InputIndex int    `json:"input_index"`
	Verdict    string `json:"verdict"`
	TimeMs     int64  `json:"time_ms"`
	CPUTimeMs  int64  `json:"cpu_time_ms"`
	MemoryKB   int64  `json:"memory_kb"`
	Output     string `json:"output"`
}

// DebugResponse defines the debug run response payload.
type DebugResponse struct {
	Runs []DebugRunPayload `json:"runs"`
}

// DiagnosticsResponse reports judging load.
type DiagnosticsResponse struct {
	ActiveUsers  int `json:"active_users"`
	LiveSessions int `json:"live_sessions"`
}
