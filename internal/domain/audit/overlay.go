package audit

import "sync"

// Overlay accumulates unflushed judgments for one open checklist. It is the
// draft tier of the merge: entries exist only for devices the operator
// touched, and survive a failed flush so the operator can retry without
// re-entering anything.
type Overlay struct {
	mu      sync.Mutex
	entries map[string]Judgment
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{entries: make(map[string]Judgment)}
}

// Set records the draft judgment for a device.
func (o *Overlay) Set(deviceID string, j Judgment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[deviceID] = j
}

// Get returns the draft judgment for a device, if one exists.
func (o *Overlay) Get(deviceID string) (Judgment, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.entries[deviceID]
	return j, ok
}

// Snapshot returns a copy of all draft entries.
func (o *Overlay) Snapshot() map[string]Judgment {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]Judgment, len(o.entries))
	for id, j := range o.entries {
		out[id] = j
	}
	return out
}

// Len returns the number of draft entries.
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// Clear discards all draft entries. Called only after a confirmed
// successful flush.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[string]Judgment)
}
