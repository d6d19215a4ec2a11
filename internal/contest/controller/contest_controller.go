package controller

import (
	"efrog/internal/contest/service"
	"efrog/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ContestController handles scoreboard HTTP endpoints.
type ContestController struct {
	contestService *service.ContestService
}

// NewContestController creates a new ContestController.
func NewContestController(contestService *service.ContestService) *ContestController {
	return &ContestController{contestService: contestService}
}

// GetScoreboard returns the ranked standings for a contest.
func (h *ContestController) GetScoreboard(c *gin.Context) {
	contestID := c.Param("id")
	if contestID == "" {
		response.BadRequest(c, "Invalid contest id")
		return
	}
	board, err := h.contestService.GetScoreboard(c.Request.Context(), contestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, board)
}
