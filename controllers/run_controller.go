package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobpilot/services"
	"jobpilot/utils"
)

type RunController struct {
	runner *services.RunnerService
}

func NewRunController(runner *services.RunnerService) *RunController {
	return &RunController{runner: runner}
}

// StartRun launches a discovery-and-apply run for the caller. The run
// executes asynchronously; the response carries the ID to poll.
func (c *RunController) StartRun(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.UnauthorizedError(ctx, "User not authenticated")
		return
	}

	var req services.RunRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.BadRequestError(ctx, "Invalid request data", err)
		return
	}
	req.UserID = userID

	run, err := c.runner.Start(req)
	if err != nil {
		if errors.Is(err, services.ErrRunActive) {
			utils.ConflictError(ctx, "A run is already active for this account", err)
			return
		}
		utils.InternalServerError(ctx, "Failed to start run", err)
		return
	}

	utils.SuccessResponse(ctx, http.StatusAccepted, "Run started", run.Snapshot())
}

// GetRun returns the live or final summary for one run.
func (c *RunController) GetRun(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.UnauthorizedError(ctx, "User not authenticated")
		return
	}

	summary, err := c.runner.Get(ctx.Param("id"), userID)
	if err != nil {
		utils.NotFoundError(ctx, "Run not found")
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Run status", summary)
}

// CancelRun interrupts a run at its next step boundary.
func (c *RunController) CancelRun(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.UnauthorizedError(ctx, "User not authenticated")
		return
	}

	if err := c.runner.Cancel(ctx.Param("id"), userID); err != nil {
		utils.NotFoundError(ctx, "Run not found")
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Run canceled", nil)
}
