package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsandoval/gridwatch/internal/domain/incident"
	"github.com/rsandoval/gridwatch/internal/repository"
)

// IncidentRepository implements incident.Repository for SQLite
type IncidentRepository struct {
	db *DB
}

// NewIncidentRepository creates a new IncidentRepository
func NewIncidentRepository(db *DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create appends an incident to the log
func (r *IncidentRepository) Create(ctx context.Context, inc *incident.Incident) error {
	query := `
		INSERT INTO incidents (id, device_id, category, description, reported_at, resolved, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		inc.ID,
		inc.DeviceID,
		inc.Category,
		inc.Description,
		inc.ReportedAt,
		inc.Resolved,
		inc.ResolvedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create incident: %w", err)
	}

	return nil
}

// Get retrieves an incident by ID
func (r *IncidentRepository) Get(ctx context.Context, id string) (*incident.Incident, error) {
	query := `
		SELECT id, device_id, category, description, reported_at, resolved, resolved_at
		FROM incidents
		WHERE id = ?
	`

	var inc incident.Incident
	var resolvedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&inc.ID,
		&inc.DeviceID,
		&inc.Category,
		&inc.Description,
		&inc.ReportedAt,
		&inc.Resolved,
		&resolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	if resolvedAt.Valid {
		inc.ResolvedAt = &resolvedAt.Time
	}
	return &inc, nil
}

// List returns incidents matching the options
func (r *IncidentRepository) List(ctx context.Context, opts incident.ListOptions) ([]incident.Incident, error) {
	query := `
		SELECT id, device_id, category, description, reported_at, resolved, resolved_at
		FROM incidents
		WHERE 1 = 1
	`
	args := []any{}
	if opts.DeviceID != "" {
		query += " AND device_id = ?"
		args = append(args, opts.DeviceID)
	}
	if opts.From != nil {
		query += " AND reported_at >= ?"
		args = append(args, *opts.From)
	}
	if opts.To != nil {
		query += " AND reported_at < ?"
		args = append(args, *opts.To)
	}
	if !opts.IncludeResolved {
		query += " AND resolved = 0"
	}
	query += " ORDER BY reported_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []incident.Incident
	for rows.Next() {
		var inc incident.Incident
		var resolvedAt sql.NullTime
		if err := rows.Scan(&inc.ID, &inc.DeviceID, &inc.Category, &inc.Description, &inc.ReportedAt, &inc.Resolved, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		if resolvedAt.Valid {
			inc.ResolvedAt = &resolvedAt.Time
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}

	return incidents, nil
}

// Resolve marks an incident as handled
func (r *IncidentRepository) Resolve(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE incidents SET resolved = 1, resolved_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve incident: %w", err)
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

// Delete removes an incident
func (r *IncidentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM incidents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete incident: %w", err)
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

// CountOpenByDevice returns unresolved incident counts per device for a central
func (r *IncidentRepository) CountOpenByDevice(ctx context.Context, centralID string) (map[string]int, error) {
	query := `
		SELECT i.device_id, COUNT(*)
		FROM incidents i
		JOIN devices d ON d.id = i.device_id
		WHERE d.central_id = ? AND i.resolved = 0
		GROUP BY i.device_id
	`

	rows, err := r.db.QueryContext(ctx, query, centralID)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var deviceID string
		var count int
		if err := rows.Scan(&deviceID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan incident count: %w", err)
		}
		counts[deviceID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incident counts: %w", err)
	}

	return counts, nil
}
