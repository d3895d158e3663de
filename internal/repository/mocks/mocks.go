package mocks

import (
	"context"
	"time"

	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/domain/device"
	"github.com/rsandoval/gridwatch/internal/domain/incident"
	"github.com/stretchr/testify/mock"
)

// DeviceRepository is a mock device store.
type DeviceRepository struct {
	mock.Mock
}

func (m *DeviceRepository) Create(ctx context.Context, dev *device.Device) error {
	args := m.Called(ctx, dev)
	return args.Error(0)
}

func (m *DeviceRepository) Get(ctx context.Context, id string) (*device.Device, error) {
	args := m.Called(ctx, id)
	if dev, ok := args.Get(0).(*device.Device); ok {
		return dev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DeviceRepository) ListActive(ctx context.Context, filter device.Filter) ([]device.Device, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]device.Device); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DeviceRepository) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

// ChecklistRepository is a mock for audit.ChecklistRepository.
type ChecklistRepository struct {
	mock.Mock
}

func (m *ChecklistRepository) Create(ctx context.Context, checklist *audit.Checklist) error {
	args := m.Called(ctx, checklist)
	return args.Error(0)
}

func (m *ChecklistRepository) Get(ctx context.Context, id string) (*audit.Checklist, error) {
	args := m.Called(ctx, id)
	if checklist, ok := args.Get(0).(*audit.Checklist); ok {
		return checklist, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ChecklistRepository) FindByKey(ctx context.Context, key audit.ChecklistKey) (*audit.Checklist, error) {
	args := m.Called(ctx, key)
	if checklist, ok := args.Get(0).(*audit.Checklist); ok {
		return checklist, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ChecklistRepository) MarkComplete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *ChecklistRepository) ListRecent(ctx context.Context, centralID string, limit int) ([]audit.Checklist, error) {
	args := m.Called(ctx, centralID, limit)
	if list, ok := args.Get(0).([]audit.Checklist); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// JudgmentRepository is a mock for audit.JudgmentRepository.
type JudgmentRepository struct {
	mock.Mock
}

func (m *JudgmentRepository) Upsert(ctx context.Context, checklistID, deviceID string, j audit.Judgment, recordedAt time.Time) error {
	args := m.Called(ctx, checklistID, deviceID, j, recordedAt)
	return args.Error(0)
}

func (m *JudgmentRepository) Get(ctx context.Context, checklistID, deviceID string) (*audit.DeviceJudgment, error) {
	args := m.Called(ctx, checklistID, deviceID)
	if row, ok := args.Get(0).(*audit.DeviceJudgment); ok {
		return row, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JudgmentRepository) FindByChecklist(ctx context.Context, checklistID string) ([]audit.DeviceJudgment, error) {
	args := m.Called(ctx, checklistID)
	if rows, ok := args.Get(0).([]audit.DeviceJudgment); ok {
		return rows, args.Error(1)
	}
	return nil, args.Error(1)
}

// IncidentRepository is a mock for incident.Repository.
type IncidentRepository struct {
	mock.Mock
}

func (m *IncidentRepository) Create(ctx context.Context, inc *incident.Incident) error {
	args := m.Called(ctx, inc)
	return args.Error(0)
}

func (m *IncidentRepository) Get(ctx context.Context, id string) (*incident.Incident, error) {
	args := m.Called(ctx, id)
	if inc, ok := args.Get(0).(*incident.Incident); ok {
		return inc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IncidentRepository) List(ctx context.Context, opts incident.ListOptions) ([]incident.Incident, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]incident.Incident); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *IncidentRepository) Resolve(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *IncidentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *IncidentRepository) CountOpenByDevice(ctx context.Context, centralID string) (map[string]int, error) {
	args := m.Called(ctx, centralID)
	if counts, ok := args.Get(0).(map[string]int); ok {
		return counts, args.Error(1)
	}
	return nil, args.Error(1)
}
