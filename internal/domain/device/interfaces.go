package device

import "context"

// Repository provides persistence for the device directory.
type Repository interface {
	Create(ctx context.Context, dev *Device) error
	Get(ctx context.Context, id string) (*Device, error)
	ListActive(ctx context.Context, filter Filter) ([]Device, error)
	SetActive(ctx context.Context, id string, active bool) error
}
