package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rsandoval/gridwatch/internal/domain/device"
	"github.com/rsandoval/gridwatch/internal/repository"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentWrites bounds the flush fan-out.
const maxConcurrentWrites = 8

// Service owns the audit-session reconciliation engine: it resolves
// checklists by natural key, accumulates draft judgments per open checklist,
// merges the draft, persisted and default tiers, and commits complete
// snapshots to the judgment repository.
type Service struct {
	devices    DeviceRepository
	checklists ChecklistRepository
	judgments  JudgmentRepository
	logger     *slog.Logger

	mu   sync.Mutex
	open map[ChecklistKey]*state

	subMu sync.Mutex
	subs  []func(Event)
}

// state holds everything attached to one open checklist: the lazily created
// row, the draft overlay and the hydrated persisted tier. ratings remembers
// the last accepted draft rating per device; the overlay entry itself cannot
// carry it once the device is drafted as failed.
type state struct {
	mu         sync.Mutex
	checklist  *Checklist
	supervisor string
	overlay    *Overlay
	persisted  map[string]Judgment
	ratings    map[string]Quality
	flushing   bool
}

// NewService creates a new audit service.
func NewService(
	devices DeviceRepository,
	checklists ChecklistRepository,
	judgments JudgmentRepository,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		devices:    devices,
		checklists: checklists,
		judgments:  judgments,
		logger:     logger,
		open:       make(map[ChecklistKey]*state),
	}
}

// Subscribe registers a callback invoked after every accepted judgment
// change on an open checklist.
func (s *Service) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Service) notify(ev Event) {
	s.subMu.Lock()
	subs := make([]func(Event), len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// OpenResult describes the outcome of opening an audit session.
type OpenResult struct {
	Checklist *Checklist `json:"checklist,omitempty"`
	Hydrated  int        `json:"hydrated"`
	Drafts    int        `json:"drafts"`
}

// ScopeJudgment pairs a scoped device with its effective judgment.
type ScopeJudgment struct {
	Device   device.Device `json:"device"`
	Judgment Judgment      `json:"judgment"`
}

// Open resolves the checklist for a natural key and hydrates the persisted
// judgment tier. No row is created: an audit that is opened but never
// flushed leaves no trace. The draft overlay starts empty. Opening an
// already-open key returns the existing session with its drafts intact.
func (s *Service) Open(ctx context.Context, key ChecklistKey, supervisor string) (*OpenResult, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if st, ok := s.open[key]; ok {
		s.mu.Unlock()
		st.mu.Lock()
		defer st.mu.Unlock()
		return &OpenResult{
			Checklist: st.checklist,
			Hydrated:  len(st.persisted),
			Drafts:    st.overlay.Len(),
		}, nil
	}
	s.mu.Unlock()

	st, err := s.hydrate(ctx, key, supervisor)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.open[key]; ok {
		st = existing
	} else {
		s.open[key] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	return &OpenResult{
		Checklist: st.checklist,
		Hydrated:  len(st.persisted),
		Drafts:    st.overlay.Len(),
	}, nil
}

// Discard drops an open session and its unflushed drafts.
func (s *Service) Discard(key ChecklistKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, key)
}

// SetOperational flips the draft operational flag for a device. Marking a
// device failed forces its rating to null in the same update; marking it
// operational restores the prior rating, preferring a rating drafted this
// session over the persisted tier and defaulting to good when neither has
// one.
func (s *Service) SetOperational(key ChecklistKey, deviceID string, operational bool) (Judgment, error) {
	if deviceID == "" {
		return Judgment{}, ErrInvalidInput
	}
	st, err := s.state(key)
	if err != nil {
		return Judgment{}, err
	}

	st.mu.Lock()
	var next Judgment
	if !operational {
		next = Failed()
	} else if q, ok := st.priorRating(deviceID); ok {
		next = Working(q)
	} else {
		next = Working(QualityGood)
	}
	st.overlay.Set(deviceID, next)
	st.mu.Unlock()

	s.notify(Event{Key: key, DeviceID: deviceID, Judgment: next})
	return next, nil
}

// SetQuality records a draft rating for a device. The request is silently
// rejected while the device's effective judgment is failed: that is a
// normal UI-reachable state, not an error, and the unchanged effective
// judgment is returned.
func (s *Service) SetQuality(key ChecklistKey, deviceID string, q Quality) (Judgment, error) {
	if deviceID == "" {
		return Judgment{}, ErrInvalidInput
	}
	if err := ValidateQuality(q); err != nil {
		return Judgment{}, err
	}
	st, err := s.state(key)
	if err != nil {
		return Judgment{}, err
	}

	st.mu.Lock()
	effective := Resolve(deviceID, st.overlay, st.persisted)
	if !effective.Operational() {
		st.mu.Unlock()
		return effective, nil
	}
	next := Working(q)
	st.overlay.Set(deviceID, next)
	st.ratings[deviceID] = q
	st.mu.Unlock()

	s.notify(Event{Key: key, DeviceID: deviceID, Judgment: next})
	return next, nil
}

// Effective returns the merged judgment for a device on an open checklist.
// This is what the UI displays, never the raw overlay.
func (s *Service) Effective(key ChecklistKey, deviceID string) (Judgment, error) {
	if deviceID == "" {
		return Judgment{}, ErrInvalidInput
	}
	st, err := s.state(key)
	if err != nil {
		return Judgment{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return Resolve(deviceID, st.overlay, st.persisted), nil
}

// Snapshot returns the effective judgment for every active device in scope.
// It works for open sessions (draft tier included) and for already-saved
// checklists (persisted tier only), so collaborators like export never
// re-derive merge logic.
func (s *Service) Snapshot(ctx context.Context, key ChecklistKey, zone string) ([]ScopeJudgment, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	var overlay *Overlay
	var persisted map[string]Judgment

	if st := s.lookup(key); st != nil {
		st.mu.Lock()
		overlay = st.overlay
		persisted = make(map[string]Judgment, len(st.persisted))
		for id, j := range st.persisted {
			persisted[id] = j
		}
		st.mu.Unlock()
	} else {
		checklist, err := s.checklists.FindByKey(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrChecklistNotFound
			}
			return nil, fmt.Errorf("loading checklist: %w", err)
		}
		persisted, err = s.loadPersisted(ctx, checklist.ID)
		if err != nil {
			return nil, err
		}
	}

	scope, err := s.devices.ListActive(ctx, device.Filter{CentralID: key.CentralID, Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("loading device scope: %w", err)
	}

	rows := make([]ScopeJudgment, 0, len(scope))
	for _, dev := range scope {
		rows = append(rows, ScopeJudgment{
			Device:   dev,
			Judgment: Resolve(dev.ID, overlay, persisted),
		})
	}
	return rows, nil
}

// Flush commits a complete snapshot for the device scope currently in view:
// every active device for the key's central (narrowed to zone when given)
// gets exactly one upsert with its authoritative judgment, whether or not
// the operator touched it. Writes fan out concurrently and are independent
// rows; there is no rollback of already-applied writes when one fails. On
// failure the overlay is left intact so the operator can retry the whole
// set; it is cleared only after all writes settle cleanly.
func (s *Service) Flush(ctx context.Context, key ChecklistKey, zone string) (*FlushResult, error) {
	st, err := s.state(key)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	if st.flushing {
		st.mu.Unlock()
		return nil, ErrFlushInProgress
	}
	st.flushing = true
	st.mu.Unlock()
	defer func() {
		st.mu.Lock()
		st.flushing = false
		st.mu.Unlock()
	}()

	checklist, err := s.ensureChecklist(ctx, st, key)
	if err != nil {
		return nil, err
	}

	scope, err := s.devices.ListActive(ctx, device.Filter{CentralID: key.CentralID, Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("loading device scope: %w", err)
	}

	st.mu.Lock()
	resolved := make([]Judgment, len(scope))
	for i, dev := range scope {
		resolved[i] = Resolve(dev.ID, st.overlay, st.persisted)
	}
	st.mu.Unlock()

	now := time.Now()
	written := make([]bool, len(scope))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentWrites)
	for i, dev := range scope {
		i, dev := i, dev
		g.Go(func() error {
			if err := s.judgments.Upsert(gctx, checklist.ID, dev.ID, resolved[i], now); err != nil {
				return fmt.Errorf("saving judgment for %s: %w", dev.Code, err)
			}
			written[i] = true
			return nil
		})
	}
	flushErr := g.Wait()

	// Writes that landed are committed facts regardless of the outcome;
	// fold them into the persisted tier before deciding about the overlay.
	st.mu.Lock()
	saved := 0
	for i := range scope {
		if written[i] {
			st.persisted[scope[i].ID] = resolved[i]
			saved++
		}
	}
	if flushErr == nil {
		st.overlay.Clear()
	}
	st.mu.Unlock()

	if flushErr != nil {
		s.logger.Warn("flush incomplete",
			"checklist", key.String(), "saved", saved, "scope", len(scope), "error", flushErr)
		return nil, flushErr
	}

	s.logger.Info("flush complete", "checklist", key.String(), "saved", saved)
	return &FlushResult{ChecklistID: checklist.ID, Saved: saved}, nil
}

// ImmediateSet is the write path used outside an open audit view: it mutates
// the draft overlay exactly like SetOperational/SetQuality, then immediately
// persists that one device's merged judgment without touching any other
// device or clearing the rest of the overlay.
func (s *Service) ImmediateSet(ctx context.Context, key ChecklistKey, deviceID string, operational bool, quality *Quality) (Judgment, error) {
	if deviceID == "" {
		return Judgment{}, ErrInvalidInput
	}
	if quality != nil {
		if err := ValidateQuality(*quality); err != nil {
			return Judgment{}, err
		}
	}
	st, err := s.ensureState(ctx, key)
	if err != nil {
		return Judgment{}, err
	}

	st.mu.Lock()
	var next Judgment
	switch {
	case !operational:
		next = Failed()
	case quality != nil:
		next = Working(*quality)
		st.ratings[deviceID] = *quality
	default:
		if q, ok := st.priorRating(deviceID); ok {
			next = Working(q)
		} else {
			next = Working(QualityGood)
		}
	}
	st.overlay.Set(deviceID, next)
	st.mu.Unlock()

	checklist, err := s.ensureChecklist(ctx, st, key)
	if err != nil {
		return Judgment{}, err
	}
	if err := s.judgments.Upsert(ctx, checklist.ID, deviceID, next, time.Now()); err != nil {
		return Judgment{}, fmt.Errorf("saving judgment: %w", err)
	}

	st.mu.Lock()
	st.persisted[deviceID] = next
	st.mu.Unlock()

	s.notify(Event{Key: key, DeviceID: deviceID, Judgment: next})
	return next, nil
}

// Complete marks the checklist as signed off. The row must exist, which
// means at least one flush or immediate write happened.
func (s *Service) Complete(ctx context.Context, key ChecklistKey) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	var checklist *Checklist
	if st := s.lookup(key); st != nil {
		st.mu.Lock()
		checklist = st.checklist
		st.mu.Unlock()
	}
	if checklist == nil {
		found, err := s.checklists.FindByKey(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotSaved
			}
			return fmt.Errorf("loading checklist: %w", err)
		}
		checklist = found
	}

	if err := s.checklists.MarkComplete(ctx, checklist.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotSaved
		}
		return fmt.Errorf("completing checklist: %w", err)
	}

	if st := s.lookup(key); st != nil {
		st.mu.Lock()
		if st.checklist != nil {
			st.checklist.Completed = true
		}
		st.mu.Unlock()
	}
	return nil
}

// Recent returns the latest checklists for a central.
func (s *Service) Recent(ctx context.Context, centralID string, limit int) ([]Checklist, error) {
	if strings.TrimSpace(centralID) == "" {
		return nil, ErrInvalidInput
	}
	checklists, err := s.checklists.ListRecent(ctx, centralID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing checklists: %w", err)
	}
	return checklists, nil
}

func (s *Service) lookup(key ChecklistKey) *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[key]
}

func (s *Service) state(key ChecklistKey) (*state, error) {
	if st := s.lookup(key); st != nil {
		return st, nil
	}
	return nil, ErrNotOpen
}

// ensureState returns the open session for key, hydrating and registering
// one when no audit view is open. Used by the immediate-write path.
func (s *Service) ensureState(ctx context.Context, key ChecklistKey) (*state, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if st := s.lookup(key); st != nil {
		return st, nil
	}

	st, err := s.hydrate(ctx, key, "")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.open[key]; ok {
		return existing, nil
	}
	s.open[key] = st
	return st, nil
}

// hydrate builds a fresh session state: resolve the checklist row if one
// exists and load its persisted judgments. No local state is registered on
// failure, so resolution errors mutate nothing.
func (s *Service) hydrate(ctx context.Context, key ChecklistKey, supervisor string) (*state, error) {
	st := &state{
		supervisor: strings.TrimSpace(supervisor),
		overlay:    NewOverlay(),
		persisted:  make(map[string]Judgment),
		ratings:    make(map[string]Quality),
	}

	checklist, err := s.checklists.FindByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("resolving checklist: %w", err)
		}
		return st, nil
	}

	st.checklist = checklist
	st.supervisor = checklist.Supervisor
	persisted, err := s.loadPersisted(ctx, checklist.ID)
	if err != nil {
		return nil, err
	}
	st.persisted = persisted
	return st, nil
}

func (s *Service) loadPersisted(ctx context.Context, checklistID string) (map[string]Judgment, error) {
	rows, err := s.judgments.FindByChecklist(ctx, checklistID)
	if err != nil {
		return nil, fmt.Errorf("loading judgments: %w", err)
	}
	persisted := make(map[string]Judgment, len(rows))
	for _, row := range rows {
		persisted[row.DeviceID] = row.Judgment
	}
	return persisted, nil
}

// ensureChecklist creates the row lazily on first write. Creation is
// idempotent on the natural key: a concurrent create surfaces as a unique
// violation and resolves to the existing row.
func (s *Service) ensureChecklist(ctx context.Context, st *state, key ChecklistKey) (*Checklist, error) {
	st.mu.Lock()
	if st.checklist != nil {
		checklist := st.checklist
		st.mu.Unlock()
		return checklist, nil
	}
	supervisor := st.supervisor
	st.mu.Unlock()

	checklist := &Checklist{
		ID:         uuid.NewString(),
		Date:       key.Date,
		CentralID:  key.CentralID,
		Shift:      key.Shift,
		Supervisor: supervisor,
		CreatedAt:  time.Now(),
	}
	if err := s.checklists.Create(ctx, checklist); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			existing, findErr := s.checklists.FindByKey(ctx, key)
			if findErr != nil {
				return nil, fmt.Errorf("resolving checklist after conflict: %w", findErr)
			}
			checklist = existing
		} else {
			return nil, fmt.Errorf("creating checklist: %w", err)
		}
	}

	st.mu.Lock()
	st.checklist = checklist
	st.mu.Unlock()
	return checklist, nil
}

// priorRating returns the rating a re-enabled device should restore: the
// current draft, then the last rating drafted this session (it survives a
// failed toggle), then the persisted tier. Callers must hold st.mu.
func (st *state) priorRating(deviceID string) (Quality, bool) {
	if j, ok := st.overlay.Get(deviceID); ok {
		if q, ok := j.Rating(); ok {
			return q, true
		}
		// Drafted as failed: the overlay entry dropped the rating.
	}
	if q, ok := st.ratings[deviceID]; ok {
		return q, true
	}
	if j, ok := st.persisted[deviceID]; ok {
		if q, ok := j.Rating(); ok {
			return q, true
		}
	}
	return 0, false
}
