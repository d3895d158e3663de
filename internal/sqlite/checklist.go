package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/repository"
)

// ChecklistRepository implements audit.ChecklistRepository for SQLite
type ChecklistRepository struct {
	db *DB
}

// NewChecklistRepository creates a new ChecklistRepository
func NewChecklistRepository(db *DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// Create inserts a checklist row. The (audit_date, central_id, shift)
// natural key is unique; a duplicate surfaces as repository.ErrConflict.
func (r *ChecklistRepository) Create(ctx context.Context, checklist *audit.Checklist) error {
	query := `
		INSERT INTO checklists (id, audit_date, central_id, shift, supervisor, completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		checklist.ID,
		checklist.Date,
		checklist.CentralID,
		checklist.Shift,
		checklist.Supervisor,
		checklist.Completed,
		checklist.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create checklist: %w", err)
	}

	return nil
}

// Get retrieves a checklist by ID
func (r *ChecklistRepository) Get(ctx context.Context, id string) (*audit.Checklist, error) {
	query := `
		SELECT id, audit_date, central_id, shift, supervisor, completed, created_at
		FROM checklists
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByKey retrieves a checklist by its natural key
func (r *ChecklistRepository) FindByKey(ctx context.Context, key audit.ChecklistKey) (*audit.Checklist, error) {
	query := `
		SELECT id, audit_date, central_id, shift, supervisor, completed, created_at
		FROM checklists
		WHERE audit_date = ? AND central_id = ? AND shift = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, key.Date, key.CentralID, key.Shift))
}

// MarkComplete sets the completion flag
func (r *ChecklistRepository) MarkComplete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE checklists SET completed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to complete checklist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListRecent returns the latest checklists for a central
func (r *ChecklistRepository) ListRecent(ctx context.Context, centralID string, limit int) ([]audit.Checklist, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, audit_date, central_id, shift, supervisor, completed, created_at
		FROM checklists
		WHERE central_id = ?
		ORDER BY audit_date DESC, created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, centralID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checklists: %w", err)
	}
	defer rows.Close()

	var checklists []audit.Checklist
	for rows.Next() {
		var c audit.Checklist
		if err := rows.Scan(&c.ID, &c.Date, &c.CentralID, &c.Shift, &c.Supervisor, &c.Completed, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checklist: %w", err)
		}
		checklists = append(checklists, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checklists: %w", err)
	}

	return checklists, nil
}

func (r *ChecklistRepository) scanOne(row *sql.Row) (*audit.Checklist, error) {
	var c audit.Checklist
	err := row.Scan(&c.ID, &c.Date, &c.CentralID, &c.Shift, &c.Supervisor, &c.Completed, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist: %w", err)
	}
	return &c, nil
}
