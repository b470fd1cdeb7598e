package models

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"strings"
	"time"
)

// ApplicationOutcome is the terminal state of one application attempt. The
// form state machine reports these; it never raises them as errors.
type ApplicationOutcome string

const (
	// OutcomeSubmitted means a success indicator was positively confirmed.
	OutcomeSubmitted ApplicationOutcome = "submitted"
	// OutcomeRequiresManual means automation could not proceed (login wall,
	// missing contact email, no easy-apply affordance) and a human should
	// finish the application.
	OutcomeRequiresManual ApplicationOutcome = "requires_manual"
	// OutcomeBlocked means the form reached a state with no progression
	// control and no success indicator. Silence is not success.
	OutcomeBlocked ApplicationOutcome = "blocked"
	// OutcomeExhausted means the step cap was hit before a terminal page.
	OutcomeExhausted ApplicationOutcome = "exhausted"
)

// ApplicationResult is what one run of the form state machine produced.
type ApplicationResult struct {
	Outcome      ApplicationOutcome `json:"outcome"`
	Steps        int                `json:"steps"`
	FieldsFilled int                `json:"fields_filled"`
	Reason       string             `json:"reason,omitempty"`
}

type ApplicationRecord struct {
	ID              int       `json:"id"`
	ApplicationCode string    `json:"application_code"`
	UserID          int       `json:"user_id"`
	JobID           int       `json:"job_id"`
	Outcome         string    `json:"outcome"`
	Steps           int       `json:"steps"`
	FieldsFilled    int       `json:"fields_filled"`
	Reason          string    `json:"reason,omitempty"`
	AppliedAt       time.Time `json:"applied_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ApplicationModel struct {
	DB *sql.DB
}

func NewApplicationModel(db *sql.DB) *ApplicationModel {
	return &ApplicationModel{DB: db}
}

// generateApplicationCode generates a unique 8-character alphanumeric code
func generateApplicationCode() string {
	bytes := make([]byte, 4) // 4 bytes = 8 hex characters
	rand.Read(bytes)
	return strings.ToUpper(hex.EncodeToString(bytes))
}

// SaveOutcome records the terminal result of an application attempt. Keyed by
// (user, job): re-applying to the same job overwrites the previous outcome.
func (m *ApplicationModel) SaveOutcome(userID, jobID int, result *ApplicationResult) (*ApplicationRecord, error) {
	code := generateApplicationCode()
	for {
		var exists bool
		err := m.DB.QueryRow("SELECT EXISTS(SELECT 1 FROM applications WHERE application_code = $1)", code).Scan(&exists)
		if err != nil || !exists {
			break
		}
		code = generateApplicationCode()
	}

	record := &ApplicationRecord{}
	query := `
		INSERT INTO applications (application_code, user_id, job_id, outcome, steps, fields_filled, reason, applied_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id, job_id) DO UPDATE
		SET outcome = EXCLUDED.outcome, steps = EXCLUDED.steps,
		    fields_filled = EXCLUDED.fields_filled, reason = EXCLUDED.reason,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, application_code, user_id, job_id, outcome, steps, fields_filled, reason, applied_at, updated_at
	`
	var reason sql.NullString
	err := m.DB.QueryRow(query, code, userID, jobID, string(result.Outcome), result.Steps, result.FieldsFilled, result.Reason, time.Now()).Scan(
		&record.ID, &record.ApplicationCode, &record.UserID, &record.JobID, &record.Outcome,
		&record.Steps, &record.FieldsFilled, &reason, &record.AppliedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		record.Reason = reason.String
	}
	return record, nil
}

func (m *ApplicationModel) GetByJobID(userID, jobID int) (*ApplicationRecord, error) {
	record := &ApplicationRecord{}
	query := `
		SELECT id, application_code, user_id, job_id, outcome, steps, fields_filled, reason, applied_at, updated_at
		FROM applications WHERE user_id = $1 AND job_id = $2
	`
	var reason sql.NullString
	err := m.DB.QueryRow(query, userID, jobID).Scan(
		&record.ID, &record.ApplicationCode, &record.UserID, &record.JobID, &record.Outcome,
		&record.Steps, &record.FieldsFilled, &reason, &record.AppliedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		record.Reason = reason.String
	}
	return record, nil
}

func (m *ApplicationModel) ListByUser(userID, limit, offset int) ([]ApplicationRecord, error) {
	query := `
		SELECT id, application_code, user_id, job_id, outcome, steps, fields_filled, reason, applied_at, updated_at
		FROM applications
		WHERE user_id = $1
		ORDER BY applied_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := m.DB.Query(query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []ApplicationRecord{}
	for rows.Next() {
		var record ApplicationRecord
		var reason sql.NullString
		err := rows.Scan(
			&record.ID, &record.ApplicationCode, &record.UserID, &record.JobID, &record.Outcome,
			&record.Steps, &record.FieldsFilled, &reason, &record.AppliedAt, &record.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if reason.Valid {
			record.Reason = reason.String
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
