package models

import (
	"database/sql"
	"time"
)

// ApplicantProfile carries the contact fields the form state machine is
// allowed to type into recognized inputs. Email is the hard requirement for
// automated submission; everything else is best-effort.
type ApplicantProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Location  string `json:"location"`
}

func (p ApplicantProfile) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Materials are opaque file paths produced elsewhere. The engine uploads
// them when a form asks; it never generates or inspects their content.
type Materials struct {
	ResumePath      string `json:"resume_path"`
	CoverLetterPath string `json:"cover_letter_path"`
}

type Profile struct {
	ID              int       `json:"id"`
	UserID          int       `json:"user_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Phone           string    `json:"phone"`
	Location        string    `json:"location"`
	ResumePath      string    `json:"resume_path"`
	CoverLetterPath string    `json:"cover_letter_path"`
	LinkedinURL     string    `json:"linkedin_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ProfileModel struct {
	DB *sql.DB
}

func NewProfileModel(db *sql.DB) *ProfileModel {
	return &ProfileModel{DB: db}
}

func (m *ProfileModel) GetByUserID(userID int) (*Profile, error) {
	profile := &Profile{}
	query := `
		SELECT id, user_id,
		       COALESCE(first_name, '') as first_name,
		       COALESCE(last_name, '') as last_name,
		       COALESCE(phone, '') as phone,
		       COALESCE(location, '') as location,
		       COALESCE(resume_path, '') as resume_path,
		       COALESCE(cover_letter_path, '') as cover_letter_path,
		       COALESCE(linkedin_url, '') as linkedin_url,
		       created_at, updated_at
		FROM profiles WHERE user_id = $1
	`
	err := m.DB.QueryRow(query, userID).Scan(
		&profile.ID, &profile.UserID, &profile.FirstName, &profile.LastName,
		&profile.Phone, &profile.Location, &profile.ResumePath,
		&profile.CoverLetterPath, &profile.LinkedinURL,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Upsert creates or refreshes the single profile row a user owns.
func (m *ProfileModel) Upsert(userID int, p *Profile) (*Profile, error) {
	profile := &Profile{}
	query := `
		INSERT INTO profiles (user_id, first_name, last_name, phone, location, resume_path, cover_letter_path, linkedin_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
		    phone = EXCLUDED.phone, location = EXCLUDED.location,
		    resume_path = EXCLUDED.resume_path, cover_letter_path = EXCLUDED.cover_letter_path,
		    linkedin_url = EXCLUDED.linkedin_url, updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, first_name, last_name, phone, location, resume_path, cover_letter_path, linkedin_url, created_at, updated_at
	`
	err := m.DB.QueryRow(query, userID, p.FirstName, p.LastName, p.Phone, p.Location,
		p.ResumePath, p.CoverLetterPath, p.LinkedinURL, time.Now()).Scan(
		&profile.ID, &profile.UserID, &profile.FirstName, &profile.LastName,
		&profile.Phone, &profile.Location, &profile.ResumePath,
		&profile.CoverLetterPath, &profile.LinkedinURL,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Applicant converts a stored profile plus the owning user's email into the
// value the engine consumes.
func (p *Profile) Applicant(email string) ApplicantProfile {
	return ApplicantProfile{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     email,
		Phone:     p.Phone,
		Location:  p.Location,
	}
}

// Materials returns the opaque file paths saved on the profile.
func (p *Profile) MaterialPaths() Materials {
	return Materials{
		ResumePath:      p.ResumePath,
		CoverLetterPath: p.CoverLetterPath,
	}
}
