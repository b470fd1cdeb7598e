package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"jobpilot/config"
)

func Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	// Build connection string
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	// Open database connection
	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %v", err)
	}

	return db, nil
}

// InitSchema creates the tables the models expect. Safe to run on every start.
func InitSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id SERIAL PRIMARY KEY,
			user_id INTEGER UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			first_name VARCHAR(255),
			last_name VARCHAR(255),
			phone VARCHAR(50),
			location VARCHAR(255),
			resume_path TEXT,
			cover_letter_path TEXT,
			linkedin_url TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id SERIAL PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			company VARCHAR(255) NOT NULL DEFAULT '',
			location VARCHAR(255) NOT NULL DEFAULT '',
			url TEXT UNIQUE NOT NULL,
			source VARCHAR(50) NOT NULL DEFAULT '',
			description TEXT,
			applies_externally BOOLEAN NOT NULL DEFAULT FALSE,
			low_confidence BOOLEAN NOT NULL DEFAULT FALSE,
			match_score INTEGER NOT NULL DEFAULT 0,
			discovered_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS applications (
			id SERIAL PRIMARY KEY,
			application_code VARCHAR(8) UNIQUE NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			outcome VARCHAR(50) NOT NULL,
			steps INTEGER NOT NULL DEFAULT 0,
			fields_filled INTEGER NOT NULL DEFAULT 0,
			reason TEXT,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, job_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs(source)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_user ON applications(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("error creating schema: %v", err)
		}
	}
	return nil
}
