package audit

import (
	"context"
	"time"

	"github.com/rsandoval/gridwatch/internal/domain/device"
)

// ChecklistRepository provides persistence for checklists.
type ChecklistRepository interface {
	FindByKey(ctx context.Context, key ChecklistKey) (*Checklist, error)
	Create(ctx context.Context, checklist *Checklist) error
	MarkComplete(ctx context.Context, id string) error
	ListRecent(ctx context.Context, centralID string, limit int) ([]Checklist, error)
}

// JudgmentRepository provides persistence for per-device judgments.
type JudgmentRepository interface {
	FindByChecklist(ctx context.Context, checklistID string) ([]DeviceJudgment, error)
	Upsert(ctx context.Context, checklistID, deviceID string, j Judgment, recordedAt time.Time) error
}

// DeviceRepository provides the device scope for flushes.
type DeviceRepository interface {
	ListActive(ctx context.Context, filter device.Filter) ([]device.Device, error)
}
