package audit

import (
	"strings"
	"time"
)

// ValidShift reports whether the label is a known shift.
func ValidShift(shift string) bool {
	switch shift {
	case ShiftMorning, ShiftAfternoon, ShiftNight:
		return true
	}
	return false
}

// ValidateKey validates a checklist natural key.
func ValidateKey(key ChecklistKey) error {
	if _, err := time.Parse(DateLayout, key.Date); err != nil {
		return ErrInvalidKey
	}
	if strings.TrimSpace(key.CentralID) == "" {
		return ErrInvalidKey
	}
	if !ValidShift(key.Shift) {
		return ErrInvalidKey
	}
	return nil
}

// ValidateQuality validates a requested rating.
func ValidateQuality(q Quality) error {
	if !q.Valid() {
		return ErrInvalidQuality
	}
	return nil
}
