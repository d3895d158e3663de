package incident

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

// Service handles the incident log: append-only reporting plus resolution
// and deletion by operator action.
type Service struct {
	incidents Repository
	logger    *slog.Logger
}

// NewService creates a new incident service.
func NewService(incidents Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{incidents: incidents, logger: logger}
}

// ReportRequest describes a new incident report.
type ReportRequest struct {
	DeviceID    string
	Category    Category
	Description string
}

// Report appends an incident to the log.
func (s *Service) Report(ctx context.Context, req ReportRequest) (*Incident, error) {
	if strings.TrimSpace(req.DeviceID) == "" {
		return nil, ErrInvalidInput
	}
	if !req.Category.Valid() {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, ErrInvalidInput
	}

	inc := &Incident{
		ID:          uuid.NewString(),
		DeviceID:    req.DeviceID,
		Category:    req.Category,
		Description: req.Description,
		ReportedAt:  time.Now(),
	}
	if err := s.incidents.Create(ctx, inc); err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("creating incident: %w", err)
	}

	s.logger.Info("incident reported", "incident", inc.ID, "device", inc.DeviceID, "category", inc.Category)
	return inc, nil
}

// List returns incidents matching the options.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Incident, error) {
	incidents, err := s.incidents.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	return incidents, nil
}

// Resolve marks an incident as handled.
func (s *Service) Resolve(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.incidents.Resolve(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIncidentNotFound
		}
		return fmt.Errorf("resolving incident: %w", err)
	}
	return nil
}

// Delete removes an incident from the log.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	if err := s.incidents.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrIncidentNotFound
		}
		return fmt.Errorf("deleting incident: %w", err)
	}
	return nil
}

// OpenCounts returns the number of unresolved incidents per device for a
// central, for display next to judgments.
func (s *Service) OpenCounts(ctx context.Context, centralID string) (map[string]int, error) {
	if centralID == "" {
		return nil, ErrInvalidInput
	}
	counts, err := s.incidents.CountOpenByDevice(ctx, centralID)
	if err != nil {
		return nil, fmt.Errorf("counting incidents: %w", err)
	}
	return counts, nil
}
