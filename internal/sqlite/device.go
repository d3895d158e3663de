package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsandoval/gridwatch/internal/domain/device"
	"github.com/rsandoval/gridwatch/internal/repository"
)

// DeviceRepository implements device.Repository for SQLite
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create adds a device to the directory
func (r *DeviceRepository) Create(ctx context.Context, dev *device.Device) error {
	query := `
		INSERT INTO devices (id, code, central_id, zone, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		dev.ID,
		dev.Code,
		dev.CentralID,
		dev.Zone,
		dev.Active,
		dev.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

// Get retrieves a device by ID
func (r *DeviceRepository) Get(ctx context.Context, id string) (*device.Device, error) {
	query := `
		SELECT id, code, central_id, zone, active, created_at
		FROM devices
		WHERE id = ?
	`

	var dev device.Device
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&dev.ID,
		&dev.Code,
		&dev.CentralID,
		&dev.Zone,
		&dev.Active,
		&dev.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &dev, nil
}

// ListActive returns active devices for a central, optionally narrowed to a zone
func (r *DeviceRepository) ListActive(ctx context.Context, filter device.Filter) ([]device.Device, error) {
	query := `
		SELECT id, code, central_id, zone, active, created_at
		FROM devices
		WHERE active = 1
	`
	args := []any{}
	if filter.CentralID != "" {
		query += " AND central_id = ?"
		args = append(args, filter.CentralID)
	}
	if filter.Zone != "" {
		query += " AND zone = ?"
		args = append(args, filter.Zone)
	}
	query += " ORDER BY code ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []device.Device
	for rows.Next() {
		var dev device.Device
		if err := rows.Scan(&dev.ID, &dev.Code, &dev.CentralID, &dev.Zone, &dev.Active, &dev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

// SetActive flips a device's active flag
func (r *DeviceRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE devices SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
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
