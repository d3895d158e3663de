package incident

import "context"

// Repository provides persistence for the incident log.
type Repository interface {
	Create(ctx context.Context, inc *Incident) error
	Get(ctx context.Context, id string) (*Incident, error)
	List(ctx context.Context, opts ListOptions) ([]Incident, error)
	Resolve(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountOpenByDevice(ctx context.Context, centralID string) (map[string]int, error)
}
