package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/repository"
)

// JudgmentRepository implements audit.JudgmentRepository for SQLite
type JudgmentRepository struct {
	db *DB
}

// NewJudgmentRepository creates a new JudgmentRepository
func NewJudgmentRepository(db *DB) *JudgmentRepository {
	return &JudgmentRepository{db: db}
}

// Upsert writes the judgment for (checklist, device), keyed by identity:
// re-saving the same pair updates the row, never duplicates it.
func (r *JudgmentRepository) Upsert(ctx context.Context, checklistID, deviceID string, j audit.Judgment, recordedAt time.Time) error {
	query := `
		INSERT INTO checklist_details (checklist_id, device_id, operational, quality, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(checklist_id, device_id) DO UPDATE SET
			operational = excluded.operational,
			quality = excluded.quality,
			recorded_at = excluded.recorded_at
	`

	var quality sql.NullInt64
	if q, ok := j.Rating(); ok {
		quality = sql.NullInt64{Int64: int64(q), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, checklistID, deviceID, j.Operational(), quality, recordedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to upsert judgment: %w", err)
	}

	return nil
}

// Get retrieves the judgment for one (checklist, device) pair
func (r *JudgmentRepository) Get(ctx context.Context, checklistID, deviceID string) (*audit.DeviceJudgment, error) {
	query := `
		SELECT device_id, operational, quality, recorded_at
		FROM checklist_details
		WHERE checklist_id = ? AND device_id = ?
	`

	row, err := scanJudgment(r.db.QueryRowContext(ctx, query, checklistID, deviceID).Scan)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get judgment: %w", err)
	}
	return row, nil
}

// FindByChecklist returns all judgments persisted for a checklist
func (r *JudgmentRepository) FindByChecklist(ctx context.Context, checklistID string) ([]audit.DeviceJudgment, error) {
	query := `
		SELECT device_id, operational, quality, recorded_at
		FROM checklist_details
		WHERE checklist_id = ?
		ORDER BY device_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, checklistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list judgments: %w", err)
	}
	defer rows.Close()

	var judgments []audit.DeviceJudgment
	for rows.Next() {
		row, err := scanJudgment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan judgment: %w", err)
		}
		judgments = append(judgments, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating judgments: %w", err)
	}

	return judgments, nil
}

// scanJudgment rebuilds a judgment from raw columns. Normalization of
// legacy rows that violate the operational/quality pairing happens in
// audit.FromStored.
func scanJudgment(scan func(...any) error) (*audit.DeviceJudgment, error) {
	var (
		deviceID    string
		operational bool
		quality     sql.NullInt64
		recordedAt  time.Time
	)
	if err := scan(&deviceID, &operational, &quality, &recordedAt); err != nil {
		return nil, err
	}

	var q *int
	if quality.Valid {
		v := int(quality.Int64)
		q = &v
	}
	return &audit.DeviceJudgment{
		DeviceID:   deviceID,
		Judgment:   audit.FromStored(operational, q),
		RecordedAt: recordedAt,
	}, nil
}
