package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jobpilot/models"
	"jobpilot/services"
	"jobpilot/utils"
)

// JobController serves the jobs and applications discovered by runs.
type JobController struct {
	jobModel *models.JobModel
	appModel *models.ApplicationModel
}

func NewJobController(jobModel *models.JobModel, appModel *models.ApplicationModel) *JobController {
	return &JobController{
		jobModel: jobModel,
		appModel: appModel,
	}
}

// ListJobs returns discovered jobs ordered by match score.
// @Summary List discovered jobs
// @Produce json
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} utils.StandardResponse
// @Router /api/jobs [get]
func (jc *JobController) ListJobs(c *gin.Context) {
	limit, offset := pageParams(c)

	jobs, err := jc.jobModel.List(limit, offset)
	if err != nil {
		utils.InternalServerError(c, "Failed to load jobs", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Jobs loaded", gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob returns one job with its hydrated detail, if fetched.
func (jc *JobController) GetJob(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequestError(c, "Invalid job id", err)
		return
	}

	job, err := jc.jobModel.GetByID(id)
	if err != nil {
		utils.NotFoundError(c, "Job not found")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Job loaded", job)
}

// ListApplications returns the caller's application outcomes, newest first.
func (jc *JobController) ListApplications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.UnauthorizedError(c, "User not authenticated")
		return
	}
	limit, offset := pageParams(c)

	applications, err := jc.appModel.ListByUser(userID, limit, offset)
	if err != nil {
		utils.InternalServerError(c, "Failed to load applications", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Applications loaded", gin.H{
		"applications": applications,
		"total":        len(applications),
	})
}

// GetSupportedPlatforms lists the job boards the engine can search.
// @Summary Get supported job platforms
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/platforms [get]
func (jc *JobController) GetSupportedPlatforms(c *gin.Context) {
	var platforms []gin.H
	for _, name := range services.SearchablePlatforms() {
		platform := services.PlatformByName(name)
		platforms = append(platforms, gin.H{
			"name":       platform.Name,
			"searchable": platform.SearchURL != nil,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"platforms": platforms,
		"total":     len(platforms),
	})
}

func pageParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
