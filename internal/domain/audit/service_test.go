package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/domain/device"
	"github.com/rsandoval/gridwatch/internal/repository"
	"github.com/rsandoval/gridwatch/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testKey = audit.ChecklistKey{Date: "2026-03-14", CentralID: "central-1", Shift: audit.ShiftMorning}

func newTestService(t *testing.T) (*audit.Service, *mocks.DeviceRepository, *mocks.ChecklistRepository, *mocks.JudgmentRepository) {
	t.Helper()
	devices := new(mocks.DeviceRepository)
	checklists := new(mocks.ChecklistRepository)
	judgments := new(mocks.JudgmentRepository)
	svc := audit.NewService(devices, checklists, judgments, slog.Default())
	return svc, devices, checklists, judgments
}

func scopeDevices(n int) []device.Device {
	out := make([]device.Device, n)
	for i := range out {
		out[i] = device.Device{
			ID:        string(rune('a' + i)),
			Code:      string(rune('A' + i)),
			CentralID: "central-1",
			Active:    true,
		}
	}
	return out
}

func TestOpen_NewChecklistCreatesNoRow(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)

	result, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	require.Nil(t, result.Checklist)
	require.Equal(t, 0, result.Hydrated)
	require.Equal(t, 0, result.Drafts)

	// Opening without ever saving must leave no trace.
	checklists.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOpen_HydratesPersistedJudgments(t *testing.T) {
	svc, _, checklists, judgments := newTestService(t)
	checklist := &audit.Checklist{ID: "cl-1", Date: testKey.Date, CentralID: testKey.CentralID, Shift: testKey.Shift}
	checklists.On("FindByKey", mock.Anything, testKey).Return(checklist, nil)
	judgments.On("FindByChecklist", mock.Anything, "cl-1").Return([]audit.DeviceJudgment{
		{DeviceID: "a", Judgment: audit.Working(audit.QualityFair)},
		{DeviceID: "b", Judgment: audit.Failed()},
	}, nil)

	result, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	require.Equal(t, "cl-1", result.Checklist.ID)
	require.Equal(t, 2, result.Hydrated)

	// What was saved is what the session shows, untouched devices default.
	j, err := svc.Effective(testKey, "a")
	require.NoError(t, err)
	q, ok := j.Rating()
	require.True(t, ok)
	require.Equal(t, audit.QualityFair, q)

	j, err = svc.Effective(testKey, "b")
	require.NoError(t, err)
	require.False(t, j.Operational())

	j, err = svc.Effective(testKey, "c")
	require.NoError(t, err)
	require.Equal(t, audit.DefaultJudgment(), j)
}

func TestOpen_IdempotentKeepsDrafts(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	_, err = svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)

	// Re-opening the same key returns the existing session, drafts intact,
	// without hitting the repository again.
	result, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	require.Equal(t, 1, result.Drafts)
	checklists.AssertNumberOfCalls(t, "FindByKey", 1)
}

func TestOpen_InvalidKey(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Open(context.Background(), audit.ChecklistKey{Date: "nope"}, "supervisor")
	require.ErrorIs(t, err, audit.ErrInvalidKey)
}

func TestSetOperational_RequiresOpenSession(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.SetOperational(testKey, "a", false)
	require.ErrorIs(t, err, audit.ErrNotOpen)
}

func TestSetOperational_FailedForcesNullRating(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)
	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	_, err = svc.SetQuality(testKey, "a", audit.QualityPoor)
	require.NoError(t, err)

	j, err := svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)
	require.False(t, j.Operational())
	_, ok := j.Rating()
	require.False(t, ok)
}

func TestSetOperational_ReenableRestoresPriorRating(t *testing.T) {
	svc, _, checklists, judgments := newTestService(t)
	checklist := &audit.Checklist{ID: "cl-1", Date: testKey.Date, CentralID: testKey.CentralID, Shift: testKey.Shift}
	checklists.On("FindByKey", mock.Anything, testKey).Return(checklist, nil)
	judgments.On("FindByChecklist", mock.Anything, "cl-1").Return([]audit.DeviceJudgment{
		{DeviceID: "a", Judgment: audit.Working(audit.QualityPoor)},
	}, nil)
	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	// Fail then re-enable: the saved rating comes back.
	_, err = svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)
	j, err := svc.SetOperational(testKey, "a", true)
	require.NoError(t, err)
	q, ok := j.Rating()
	require.True(t, ok)
	require.Equal(t, audit.QualityPoor, q)

	// A device with no prior rating anywhere comes back at the default.
	_, err = svc.SetOperational(testKey, "b", false)
	require.NoError(t, err)
	j, err = svc.SetOperational(testKey, "b", true)
	require.NoError(t, err)
	q, _ = j.Rating()
	require.Equal(t, audit.QualityGood, q)
}

func TestSetOperational_ReenablePrefersDraftRating(t *testing.T) {
	svc, _, checklists, judgments := newTestService(t)
	checklist := &audit.Checklist{ID: "cl-1", Date: testKey.Date, CentralID: testKey.CentralID, Shift: testKey.Shift}
	checklists.On("FindByKey", mock.Anything, testKey).Return(checklist, nil)
	judgments.On("FindByChecklist", mock.Anything, "cl-1").Return([]audit.DeviceJudgment{
		{DeviceID: "a", Judgment: audit.Working(audit.QualityPoor)},
	}, nil)
	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	// The operator rated the device in this session before failing it; the
	// draft rating outranks the persisted one on re-enable.
	_, err = svc.SetQuality(testKey, "a", audit.QualityAcceptable)
	require.NoError(t, err)
	_, err = svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)
	j, err := svc.SetOperational(testKey, "a", true)
	require.NoError(t, err)
	q, _ := j.Rating()
	require.Equal(t, audit.QualityAcceptable, q)
}

func TestSetOperational_ReenableRestoresDraftWithoutPersisted(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)
	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	// Nothing was ever saved for this device; the rating drafted in this
	// session still survives the fail/re-enable toggle.
	_, err = svc.SetQuality(testKey, "a", audit.QualityFair)
	require.NoError(t, err)
	_, err = svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)
	j, err := svc.SetOperational(testKey, "a", true)
	require.NoError(t, err)
	q, ok := j.Rating()
	require.True(t, ok)
	require.Equal(t, audit.QualityFair, q)
}

func TestSetQuality_SilentlyRejectedWhileFailed(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)
	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	_, err = svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)

	// No error, no draft change: the unchanged effective judgment comes back.
	j, err := svc.SetQuality(testKey, "a", audit.QualityGood)
	require.NoError(t, err)
	require.False(t, j.Operational())

	j, err = svc.Effective(testKey, "a")
	require.NoError(t, err)
	require.False(t, j.Operational())
}

func TestSetQuality_InvalidRating(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)
	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	_, err = svc.SetQuality(testKey, "a", 9)
	require.ErrorIs(t, err, audit.ErrInvalidQuality)
}

func TestFlush_CommitsCompleteSnapshot(t *testing.T) {
	svc, devices, checklists, judgments := newTestService(t)
	scope := scopeDevices(3)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	devices.On("ListActive", mock.Anything, device.Filter{CentralID: "central-1"}).Return(scope, nil)

	var mu sync.Mutex
	saved := make(map[string]audit.Judgment)
	judgments.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			saved[args.String(2)] = args.Get(3).(audit.Judgment)
			mu.Unlock()
		}).Return(nil)

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	_, err = svc.SetOperational(testKey, "b", false)
	require.NoError(t, err)

	result, err := svc.Flush(context.Background(), testKey, "")
	require.NoError(t, err)
	require.Equal(t, 3, result.Saved)

	// Every device in scope got exactly one write, touched or not.
	require.Len(t, saved, 3)
	require.Equal(t, audit.DefaultJudgment(), saved["a"])
	require.False(t, saved["b"].Operational())
	require.Equal(t, audit.DefaultJudgment(), saved["c"])

	// The draft tier is spent; the committed values still resolve.
	j, err := svc.Effective(testKey, "b")
	require.NoError(t, err)
	require.False(t, j.Operational())
}

func TestFlush_CreatesRowOnceAcrossFlushes(t *testing.T) {
	svc, devices, checklists, judgments := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(nil)
	devices.On("ListActive", mock.Anything, mock.Anything).Return(scopeDevices(2), nil)
	judgments.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	_, err = svc.Flush(context.Background(), testKey, "")
	require.NoError(t, err)
	_, err = svc.Flush(context.Background(), testKey, "")
	require.NoError(t, err)

	checklists.AssertNumberOfCalls(t, "Create", 1)
	judgments.AssertNumberOfCalls(t, "Upsert", 4)
}

func TestFlush_ConflictResolvesToExistingRow(t *testing.T) {
	svc, devices, checklists, judgments := newTestService(t)
	existing := &audit.Checklist{ID: "cl-existing", Date: testKey.Date, CentralID: testKey.CentralID, Shift: testKey.Shift}

	// Session opened before the row existed; another writer creates it first.
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(repository.ErrConflict).Once()
	checklists.On("FindByKey", mock.Anything, testKey).Return(existing, nil).Once()
	devices.On("ListActive", mock.Anything, mock.Anything).Return(scopeDevices(1), nil)
	judgments.On("Upsert", mock.Anything, "cl-existing", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	result, err := svc.Flush(context.Background(), testKey, "")
	require.NoError(t, err)
	require.Equal(t, "cl-existing", result.ChecklistID)
}

func TestFlush_PartialFailureKeepsDrafts(t *testing.T) {
	svc, devices, checklists, judgments := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(nil)
	devices.On("ListActive", mock.Anything, mock.Anything).Return(scopeDevices(3), nil)

	judgments.On("Upsert", mock.Anything, mock.Anything, "b", mock.Anything, mock.Anything).
		Return(errors.New("disk full")).Once()
	judgments.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	_, err = svc.SetOperational(testKey, "b", false)
	require.NoError(t, err)
	_, err = svc.SetQuality(testKey, "a", audit.QualityPoor)
	require.NoError(t, err)

	_, err = svc.Flush(context.Background(), testKey, "")
	require.Error(t, err)

	// The drafts survive the failed flush so a retry re-sends the full set.
	j, err := svc.Effective(testKey, "b")
	require.NoError(t, err)
	require.False(t, j.Operational())

	// Retry with the store healthy: everything lands, drafts are spent.
	_, err = svc.Flush(context.Background(), testKey, "")
	require.NoError(t, err)
	j, err = svc.Effective(testKey, "b")
	require.NoError(t, err)
	require.False(t, j.Operational())
}

func TestFlush_RequiresOpenSession(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Flush(context.Background(), testKey, "")
	require.ErrorIs(t, err, audit.ErrNotOpen)
}

func TestFlush_RejectsConcurrentFlush(t *testing.T) {
	svc, devices, checklists, judgments := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(nil)
	devices.On("ListActive", mock.Anything, mock.Anything).Return(scopeDevices(1), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	judgments.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).Return(nil).Once()
	judgments.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Flush(context.Background(), testKey, "")
		done <- err
	}()

	<-started
	_, err = svc.Flush(context.Background(), testKey, "")
	require.ErrorIs(t, err, audit.ErrFlushInProgress)

	close(release)
	require.NoError(t, <-done)

	// Once the first flush settles the guard is released.
	_, err = svc.Flush(context.Background(), testKey, "")
	require.NoError(t, err)
}

func TestImmediateSet_WritesSingleDevice(t *testing.T) {
	svc, _, checklists, judgments := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	judgments.On("Upsert", mock.Anything, mock.Anything, "a", mock.Anything, mock.Anything).Return(nil).Once()

	q := audit.QualityFair
	j, err := svc.ImmediateSet(context.Background(), testKey, "a", true, &q)
	require.NoError(t, err)
	got, ok := j.Rating()
	require.True(t, ok)
	require.Equal(t, audit.QualityFair, got)

	// Exactly one write, no scope fan-out.
	judgments.AssertNumberOfCalls(t, "Upsert", 1)

	// The immediate write registered a session; the value resolves.
	j, err = svc.Effective(testKey, "a")
	require.NoError(t, err)
	require.True(t, j.Operational())
}

func TestImmediateSet_FailedIgnoresQuality(t *testing.T) {
	svc, _, checklists, judgments := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	judgments.On("Upsert", mock.Anything, mock.Anything, "a", mock.Anything, mock.Anything).Return(nil).Once()

	j, err := svc.ImmediateSet(context.Background(), testKey, "a", false, nil)
	require.NoError(t, err)
	require.False(t, j.Operational())
	_, ok := j.Rating()
	require.False(t, ok)
}

func TestComplete_RequiresSavedChecklist(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)

	err := svc.Complete(context.Background(), testKey)
	require.ErrorIs(t, err, audit.ErrNotSaved)
}

func TestComplete_MarksChecklist(t *testing.T) {
	svc, _, checklists, judgments := newTestService(t)
	checklist := &audit.Checklist{ID: "cl-1", Date: testKey.Date, CentralID: testKey.CentralID, Shift: testKey.Shift}
	checklists.On("FindByKey", mock.Anything, testKey).Return(checklist, nil)
	judgments.On("FindByChecklist", mock.Anything, "cl-1").Return([]audit.DeviceJudgment{}, nil)
	checklists.On("MarkComplete", mock.Anything, "cl-1").Return(nil).Once()

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), testKey))
	checklists.AssertExpectations(t)
}

func TestDiscard_DropsDrafts(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	_, err = svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)

	svc.Discard(testKey)

	_, err = svc.Effective(testKey, "a")
	require.ErrorIs(t, err, audit.ErrNotOpen)
}

func TestSnapshot_SavedChecklistWithoutSession(t *testing.T) {
	svc, devices, checklists, judgments := newTestService(t)
	checklist := &audit.Checklist{ID: "cl-1", Date: testKey.Date, CentralID: testKey.CentralID, Shift: testKey.Shift}
	checklists.On("FindByKey", mock.Anything, testKey).Return(checklist, nil)
	judgments.On("FindByChecklist", mock.Anything, "cl-1").Return([]audit.DeviceJudgment{
		{DeviceID: "b", Judgment: audit.Failed()},
	}, nil)
	devices.On("ListActive", mock.Anything, device.Filter{CentralID: "central-1"}).Return(scopeDevices(3), nil)

	rows, err := svc.Snapshot(context.Background(), testKey, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byID := make(map[string]audit.Judgment, len(rows))
	for _, row := range rows {
		byID[row.Device.ID] = row.Judgment
	}
	require.Equal(t, audit.DefaultJudgment(), byID["a"])
	require.False(t, byID["b"].Operational())
	require.Equal(t, audit.DefaultJudgment(), byID["c"])
}

func TestSnapshot_UnknownChecklist(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)

	_, err := svc.Snapshot(context.Background(), testKey, "")
	require.ErrorIs(t, err, audit.ErrChecklistNotFound)
}

func TestSubscribe_NotifiesOnChanges(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound)

	var events []audit.Event
	svc.Subscribe(func(ev audit.Event) { events = append(events, ev) })

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	_, err = svc.SetOperational(testKey, "a", false)
	require.NoError(t, err)
	_, err = svc.SetQuality(testKey, "b", audit.QualityPoor)
	require.NoError(t, err)

	// The rejected rating on the failed device must not fire an event.
	_, err = svc.SetQuality(testKey, "a", audit.QualityGood)
	require.NoError(t, err)

	require.Len(t, events, 2)
	require.Equal(t, "a", events[0].DeviceID)
	require.False(t, events[0].Judgment.Operational())
	require.Equal(t, "b", events[1].DeviceID)
}

func TestRecent(t *testing.T) {
	svc, _, checklists, _ := newTestService(t)

	_, err := svc.Recent(context.Background(), "  ", 10)
	require.ErrorIs(t, err, audit.ErrInvalidInput)

	want := []audit.Checklist{{ID: "cl-1"}, {ID: "cl-2"}}
	checklists.On("ListRecent", mock.Anything, "central-1", 10).Return(want, nil)
	got, err := svc.Recent(context.Background(), "central-1", 10)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// Guard against the flush result depending on wall-clock ordering: the
// recorded timestamp is whatever the service passed, a single time.Time for
// the whole snapshot.
func TestFlush_SingleTimestampPerSnapshot(t *testing.T) {
	svc, devices, checklists, judgments := newTestService(t)
	checklists.On("FindByKey", mock.Anything, testKey).Return(nil, repository.ErrNotFound).Once()
	checklists.On("Create", mock.Anything, mock.Anything).Return(nil)
	devices.On("ListActive", mock.Anything, mock.Anything).Return(scopeDevices(3), nil)

	var mu sync.Mutex
	stamps := make(map[time.Time]struct{})
	judgments.On("Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			stamps[args.Get(4).(time.Time)] = struct{}{}
			mu.Unlock()
		}).Return(nil)

	_, err := svc.Open(context.Background(), testKey, "supervisor")
	require.NoError(t, err)
	_, err = svc.Flush(context.Background(), testKey, "")
	require.NoError(t, err)
	require.Len(t, stamps, 1)
}
