package incident

import "time"

// Category classifies an incident report.
type Category string

const (
	CategoryPower        Category = "power"
	CategoryConnectivity Category = "connectivity"
	CategoryVandalism    Category = "vandalism"
	CategoryWeather      Category = "weather"
	CategoryOther        Category = "other"
)

// Valid reports whether the category is a known classification.
func (c Category) Valid() bool {
	switch c {
	case CategoryPower, CategoryConnectivity, CategoryVandalism, CategoryWeather, CategoryOther:
		return true
	}
	return false
}

// Incident is one operator-reported problem on a device. Incidents are an
// independent log: many-to-one with devices and outside the reconciliation
// invariant, but displayed alongside judgments as open counts.
type Incident struct {
	ID          string     `json:"id"`
	DeviceID    string     `json:"device_id"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
	ReportedAt  time.Time  `json:"reported_at"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// ListOptions filters an incident listing.
type ListOptions struct {
	DeviceID        string
	From            *time.Time
	To              *time.Time
	IncludeResolved bool
	Limit           int
	Offset          int
}
