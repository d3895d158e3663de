package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Shift labels accepted in a checklist key.
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftNight     = "night"
)

// DateLayout is the calendar-day format used in checklist keys.
const DateLayout = "2006-01-02"

// Quality rates the signal of an operational device.
type Quality int

const (
	QualityUnusable   Quality = 1
	QualityPoor       Quality = 2
	QualityFair       Quality = 3
	QualityAcceptable Quality = 4
	QualityGood       Quality = 5
)

// Valid reports whether q is within the rating scale.
func (q Quality) Valid() bool {
	return q >= QualityUnusable && q <= QualityGood
}

// ChecklistKey is the natural key of one audit run.
type ChecklistKey struct {
	Date      string `json:"date"`
	CentralID string `json:"central_id"`
	Shift     string `json:"shift"`
}

func (k ChecklistKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Date, k.CentralID, k.Shift)
}

// Checklist is one audit run over the device scope of a central.
type Checklist struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"`
	CentralID  string    `json:"central_id"`
	Shift      string    `json:"shift"`
	Supervisor string    `json:"supervisor"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key returns the natural key of the checklist.
func (c *Checklist) Key() ChecklistKey {
	return ChecklistKey{Date: c.Date, CentralID: c.CentralID, Shift: c.Shift}
}

// Judgment is the operational/quality verdict for one device within one
// checklist. Quality is meaningful only while the device is operational;
// the constructors keep the pair consistent, so callers never observe an
// operational=false judgment carrying a rating.
type Judgment struct {
	operational bool
	quality     Quality
}

// Working builds an operational judgment. An out-of-scale rating falls back
// to QualityGood, the domain default for operational devices.
func Working(q Quality) Judgment {
	if !q.Valid() {
		q = QualityGood
	}
	return Judgment{operational: true, quality: q}
}

// Failed builds a non-operational judgment. It carries no rating.
func Failed() Judgment {
	return Judgment{}
}

// FromStored rebuilds a judgment from persisted columns. Legacy rows may
// violate the operational/quality pairing; this is where they are normalized.
func FromStored(operational bool, quality *int) Judgment {
	if !operational {
		return Failed()
	}
	if quality == nil {
		return Working(QualityGood)
	}
	return Working(Quality(*quality))
}

// DefaultJudgment is the verdict assumed for a device nobody touched:
// operational at the good rating.
func DefaultJudgment() Judgment {
	return Working(QualityGood)
}

// Operational reports whether the device was judged operational.
func (j Judgment) Operational() bool {
	return j.operational
}

// Rating returns the quality rating; ok is false for failed devices.
func (j Judgment) Rating() (Quality, bool) {
	if !j.operational {
		return 0, false
	}
	return j.quality, true
}

type judgmentJSON struct {
	Operational bool `json:"operational"`
	Quality     *int `json:"quality"`
}

// MarshalJSON renders the judgment with an explicit null quality for failed
// devices.
func (j Judgment) MarshalJSON() ([]byte, error) {
	out := judgmentJSON{Operational: j.operational}
	if j.operational {
		q := int(j.quality)
		out.Quality = &q
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds the judgment, normalizing invalid combinations the
// same way FromStored does.
func (j *Judgment) UnmarshalJSON(data []byte) error {
	var in judgmentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*j = FromStored(in.Operational, in.Quality)
	return nil
}

// DeviceJudgment pairs a device with its judgment within a checklist.
type DeviceJudgment struct {
	DeviceID   string    `json:"device_id"`
	Judgment   Judgment  `json:"judgment"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FlushResult reports the outcome of a completed flush.
type FlushResult struct {
	ChecklistID string `json:"checklist_id"`
	Saved       int    `json:"saved"`
}

// Event describes an effective-judgment change on an open checklist.
type Event struct {
	Key      ChecklistKey
	DeviceID string
	Judgment Judgment
}
