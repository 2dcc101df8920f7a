// internal/repository/postgres/sync_run_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "erp-sync-service/internal/domain/sync"
	xerrors "erp-sync-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SyncRunRepository struct {
	db *pgxpool.Pool
}

func NewSyncRunRepository(db *pgxpool.Pool) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

const syncRunColumns = `
	id, kind, status, params, counters, errors, error_message, triggered_by, started_at, completed_at`

func scanSyncRun(row pgx.Row, run *domain.SyncRun) error {
	var paramsJSON, countersJSON, errorsJSON []byte
	if err := row.Scan(
		&run.ID, &run.Kind, &run.Status, &paramsJSON, &countersJSON, &errorsJSON,
		&run.ErrorMessage, &run.TriggeredBy, &run.StartedAt, &run.CompletedAt,
	); err != nil {
		return err
	}

	// Unmarshal JSON fields
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
			return fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}
	if len(countersJSON) > 0 {
		if err := json.Unmarshal(countersJSON, &run.Counters); err != nil {
			return fmt.Errorf("failed to unmarshal counters: %w", err)
		}
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &run.Errors); err != nil {
			return fmt.Errorf("failed to unmarshal errors: %w", err)
		}
	}
	return nil
}

// Create records the start of a run
func (r *SyncRunRepository) Create(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, kind, status, params, triggered_by, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	var paramsJSON []byte
	if run.Params != nil {
		var err error
		paramsJSON, err = json.Marshal(run.Params)
		if err != nil {
			return fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	_, err := r.db.Exec(ctx, query, run.ID, run.Kind, run.Status, paramsJSON, run.TriggeredBy, run.StartedAt)
	if err != nil {
		return &xerrors.PersistenceError{Op: "create sync_run", Key: run.ID, Err: err}
	}

	return nil
}

// Finish stores the outcome of a run
func (r *SyncRunRepository) Finish(ctx context.Context, run *domain.SyncRun) error {
	query := `
		UPDATE sync_runs
		SET status = $1, counters = $2, errors = $3, error_message = $4, completed_at = $5
		WHERE id = $6
	`

	countersJSON, err := json.Marshal(run.Counters)
	if err != nil {
		return fmt.Errorf("failed to marshal counters: %w", err)
	}
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	result, err := r.db.Exec(ctx, query, run.Status, countersJSON, errorsJSON, run.ErrorMessage, run.CompletedAt, run.ID)
	if err != nil {
		return &xerrors.PersistenceError{Op: "finish sync_run", Key: run.ID, Err: err}
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// FindByID retrieves a run by id
func (r *SyncRunRepository) FindByID(ctx context.Context, id string) (*domain.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = $1`

	var run domain.SyncRun
	err := scanSyncRun(r.db.QueryRow(ctx, query, id), &run)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sync run: %w", err)
	}

	return &run, nil
}

// List returns the most recent runs, optionally of one kind
func (r *SyncRunRepository) List(ctx context.Context, kind domain.Kind, limit int) ([]domain.SyncRun, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT ` + syncRunColumns + `
		FROM sync_runs
		WHERE ($1 = '' OR kind = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.SyncRun{}
	for rows.Next() {
		var run domain.SyncRun
		if err := scanSyncRun(rows, &run); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
