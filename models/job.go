package models

import (
	"database/sql"
	"time"
)

// JobStub is a normalized listing result. Immutable once produced by the
// listing extractor; URL is the unique key.
type JobStub struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	URL      string `json:"url"`
	Source   string `json:"source"`
}

// JobDetail is a stub hydrated with the long-form posting text.
type JobDetail struct {
	JobStub
	Description       string `json:"description"`
	AppliesExternally bool   `json:"applies_externally"`
	// LowConfidence marks details whose description came from the raw body
	// fallback (or nothing at all) rather than a recognized description block.
	LowConfidence bool `json:"low_confidence"`
}

type Job struct {
	ID                int       `json:"id"`
	Title             string    `json:"title"`
	Company           string    `json:"company"`
	Location          string    `json:"location"`
	URL               string    `json:"url"`
	Source            string    `json:"source"`
	Description       string    `json:"description,omitempty"`
	AppliesExternally bool      `json:"applies_externally"`
	LowConfidence     bool      `json:"low_confidence"`
	MatchScore        int       `json:"match_score"`
	DiscoveredAt      time.Time `json:"discovered_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Stub projects the row back down to the listing-extractor shape.
func (j Job) Stub() JobStub {
	return JobStub{
		Title:    j.Title,
		Company:  j.Company,
		Location: j.Location,
		URL:      j.URL,
		Source:   j.Source,
	}
}

type JobModel struct {
	DB *sql.DB
}

func NewJobModel(db *sql.DB) *JobModel {
	return &JobModel{DB: db}
}

// SaveStub records a discovered listing. Idempotent on URL: re-discovering a
// known job refreshes the stub columns instead of inserting a duplicate.
func (m *JobModel) SaveStub(stub JobStub) (*Job, error) {
	job := &Job{}
	query := `
		INSERT INTO jobs (title, company, location, url, source, discovered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (url) DO UPDATE
		SET title = EXCLUDED.title, company = EXCLUDED.company,
		    location = EXCLUDED.location, source = EXCLUDED.source,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, title, company, location, url, source, description,
		          applies_externally, low_confidence, match_score, discovered_at, updated_at
	`
	var description sql.NullString
	err := m.DB.QueryRow(query, stub.Title, stub.Company, stub.Location, stub.URL, stub.Source, time.Now()).Scan(
		&job.ID, &job.Title, &job.Company, &job.Location, &job.URL, &job.Source,
		&description, &job.AppliesExternally, &job.LowConfidence, &job.MatchScore,
		&job.DiscoveredAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		job.Description = description.String
	}
	return job, nil
}

// UpdateDetail hydrates a stored job with fetched detail columns.
func (m *JobModel) UpdateDetail(id int, detail *JobDetail) error {
	query := `
		UPDATE jobs
		SET description = $1, applies_externally = $2, low_confidence = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := m.DB.Exec(query, detail.Description, detail.AppliesExternally, detail.LowConfidence, time.Now(), id)
	return err
}

func (m *JobModel) UpdateMatchScore(id, score int) error {
	query := `UPDATE jobs SET match_score = $1, updated_at = $2 WHERE id = $3`
	_, err := m.DB.Exec(query, score, time.Now(), id)
	return err
}

func (m *JobModel) GetByID(id int) (*Job, error) {
	query := `
		SELECT id, title, company, location, url, source, description,
		       applies_externally, low_confidence, match_score, discovered_at, updated_at
		FROM jobs WHERE id = $1
	`
	return m.scanOne(m.DB.QueryRow(query, id))
}

func (m *JobModel) GetByURL(url string) (*Job, error) {
	query := `
		SELECT id, title, company, location, url, source, description,
		       applies_externally, low_confidence, match_score, discovered_at, updated_at
		FROM jobs WHERE url = $1
	`
	return m.scanOne(m.DB.QueryRow(query, url))
}

func (m *JobModel) List(limit, offset int) ([]Job, error) {
	query := `
		SELECT id, title, company, location, url, source, description,
		       applies_externally, low_confidence, match_score, discovered_at, updated_at
		FROM jobs
		ORDER BY match_score DESC, discovered_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := m.DB.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		var job Job
		var description sql.NullString
		err := rows.Scan(
			&job.ID, &job.Title, &job.Company, &job.Location, &job.URL, &job.Source,
			&description, &job.AppliesExternally, &job.LowConfidence, &job.MatchScore,
			&job.DiscoveredAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if description.Valid {
			job.Description = description.String
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (m *JobModel) scanOne(row *sql.Row) (*Job, error) {
	job := &Job{}
	var description sql.NullString
	err := row.Scan(
		&job.ID, &job.Title, &job.Company, &job.Location, &job.URL, &job.Source,
		&description, &job.AppliesExternally, &job.LowConfidence, &job.MatchScore,
		&job.DiscoveredAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description.Valid {
		job.Description = description.String
	}
	return job, nil
}
