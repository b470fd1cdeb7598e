package controllers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobpilot/models"
	"jobpilot/utils"
)

// ProfileController manages the applicant profile forms are filled from.
type ProfileController struct {
	profileModel *models.ProfileModel
}

func NewProfileController(profileModel *models.ProfileModel) *ProfileController {
	return &ProfileController{profileModel: profileModel}
}

type ProfileRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
	Location        string `json:"location"`
	ResumePath      string `json:"resume_path"`
	CoverLetterPath string `json:"cover_letter_path"`
	LinkedinURL     string `json:"linkedin_url"`
}

// GetProfile returns the caller's profile. A user who has not saved one yet
// gets an empty profile, not a 404.
func (pc *ProfileController) GetProfile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.UnauthorizedError(ctx, "User not authenticated")
		return
	}

	profile, err := pc.profileModel.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			utils.SuccessResponse(ctx, http.StatusOK, "No profile saved yet", models.Profile{UserID: userID})
			return
		}
		utils.InternalServerError(ctx, "Failed to load profile", err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Profile loaded", profile)
}

// UpdateProfile creates or replaces the caller's profile.
func (pc *ProfileController) UpdateProfile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.UnauthorizedError(ctx, "User not authenticated")
		return
	}

	var req ProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, err)
		return
	}

	profile, err := pc.profileModel.Upsert(userID, &models.Profile{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Location:        req.Location,
		ResumePath:      req.ResumePath,
		CoverLetterPath: req.CoverLetterPath,
		LinkedinURL:     req.LinkedinURL,
	})
	if err != nil {
		utils.InternalServerError(ctx, "Failed to save profile", err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Profile saved", profile)
}
