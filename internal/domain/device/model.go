package device

import "time"

// Device is one monitorable unit in the directory. The directory is
// reference data for the audit core: devices never change during an open
// checklist.
type Device struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	CentralID string    `json:"central_id"`
	Zone      string    `json:"zone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a directory listing to the scope of one audit view.
type Filter struct {
	CentralID string
	Zone      string
}
