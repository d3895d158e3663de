package audit

// Resolve combines the three judgment tiers for one device into the
// authoritative verdict:
//
//  1. a draft overlay entry wins outright for both fields,
//  2. else the persisted judgment wins,
//  3. else the domain default applies (operational, good rating).
//
// The overlay outranks persisted state unconditionally; there is no
// timestamp tie-break. The operational/quality invariant holds for every
// tier because Judgment can only be built through normalizing constructors.
func Resolve(deviceID string, overlay *Overlay, persisted map[string]Judgment) Judgment {
	if overlay != nil {
		if j, ok := overlay.Get(deviceID); ok {
			return j
		}
	}
	if j, ok := persisted[deviceID]; ok {
		return j
	}
	return DefaultJudgment()
}
