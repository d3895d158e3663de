package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rsandoval/gridwatch/internal/repository"
)

// Service exposes the device directory. The audit core only ever reads from
// it; registration and deactivation belong to the provisioning surface.
type Service struct {
	devices Repository
	logger  *slog.Logger
}

// NewService creates a new device service.
func NewService(devices Repository, logger *slog.Logger) *Service {
	return &Service{devices: devices, logger: logger}
}

// RegisterRequest describes a new directory entry.
type RegisterRequest struct {
	Code      string
	CentralID string
	Zone      string
}

// Register adds a device to the directory.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Device, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(req.CentralID) == "" {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(req.Zone) == "" {
		return nil, ErrInvalidInput
	}

	dev := &Device{
		ID:        uuid.NewString(),
		Code:      req.Code,
		CentralID: req.CentralID,
		Zone:      req.Zone,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := s.devices.Create(ctx, dev); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("creating device: %w", err)
	}
	return dev, nil
}

// Get returns a device by ID.
func (s *Service) Get(ctx context.Context, id string) (*Device, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	dev, err := s.devices.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("loading device: %w", err)
	}
	return dev, nil
}

// ListActive returns the active device scope for a central, optionally
// narrowed to a zone.
func (s *Service) ListActive(ctx context.Context, filter Filter) ([]Device, error) {
	devices, err := s.devices.ListActive(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return devices, nil
}

// SetActive flips a device's active flag.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.devices.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("updating device: %w", err)
	}
	return nil
}
