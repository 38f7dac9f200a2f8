package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"negotiation-service/internal/models"
	"negotiation-service/internal/negotiation"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Store is the Postgres persistence layer. It implements negotiation.Store.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProject retrieves a catalog project by ID. Read-only: the negotiation
// core snapshots list price at open time and never re-reads it.
func (s *Store) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	err := s.db.GetContext(ctx, &project, "SELECT * FROM projects WHERE id = $1", projectID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", negotiation.ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
