package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// --- モック ---

type mockEntryRepo struct {
	listUserIDsFn    func(ctx context.Context) ([]string, error)
	listByUserFn     func(ctx context.Context, userID string) ([]*model.TimeEntry, error)
	saveReconciledFn func(ctx context.Context, sessions []*model.WorkSession, entryIDs []string) error
}

func (m *mockEntryRepo) Create(ctx context.Context, entry *model.TimeEntry) error { return nil }
func (m *mockEntryRepo) FindByID(ctx context.Context, id string) (*model.TimeEntry, error) {
	return nil, nil
}
func (m *mockEntryRepo) FindLastByUser(ctx context.Context, userID string) (*model.TimeEntry, error) {
	return nil, nil
}
func (m *mockEntryRepo) ListByUser(ctx context.Context, userID string) ([]*model.TimeEntry, error) {
	return nil, nil
}
func (m *mockEntryRepo) ListByCompany(ctx context.Context, companyID string) ([]*model.TimeEntry, error) {
	return nil, nil
}
func (m *mockEntryRepo) EditWithAudit(ctx context.Context, entry *model.TimeEntry, edit *model.TimeEntryEdit) error {
	return nil
}
func (m *mockEntryRepo) DeleteByID(ctx context.Context, id string) error { return nil }
func (m *mockEntryRepo) ListUnmigratedUserIDs(ctx context.Context) ([]string, error) {
	if m.listUserIDsFn != nil {
		return m.listUserIDsFn(ctx)
	}
	return nil, nil
}
func (m *mockEntryRepo) ListUnmigratedByUser(ctx context.Context, userID string) ([]*model.TimeEntry, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockEntryRepo) SaveReconciled(ctx context.Context, sessions []*model.WorkSession, entryIDs []string) error {
	if m.saveReconciledFn != nil {
		return m.saveReconciledFn(ctx, sessions, entryIDs)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(id, userID string, typ model.EntryType, at time.Time) *model.TimeEntry {
	return &model.TimeEntry{ID: id, UserID: userID, Type: typ, Time: at}
}

// --- テスト ---

// TestPairEntries_SimplePair はSTART/STOPペアが完了済みセッションになることを検証する。
func TestPairEntries_SimplePair(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []*model.TimeEntry{
		entry("e1", "user-1", model.EntryTypeStart, base),
		entry("e2", "user-1", model.EntryTypeStop, base.Add(8*time.Hour)),
	}

	sessions, entryIDs, orphaned := PairEntries(entries)

	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if len(entryIDs) != 2 {
		t.Errorf("expected 2 entry IDs, got %d", len(entryIDs))
	}
	if orphaned != 0 {
		t.Errorf("orphaned = %d, want 0", orphaned)
	}

	s := sessions[0]
	if s.Status != model.SessionStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", s.Status)
	}
	if !s.StartTime.Equal(base) {
		t.Errorf("startTime = %v, want %v", s.StartTime, base)
	}
	if s.EndTime == nil || !s.EndTime.Equal(base.Add(8*time.Hour)) {
		t.Errorf("endTime = %v", s.EndTime)
	}
	if *s.TotalDuration != 8.0 {
		t.Errorf("totalDuration = %v, want 8.0", *s.TotalDuration)
	}
	// 旧台帳には休憩がないため正味=総時間
	if *s.NetDuration != 8.0 {
		t.Errorf("netDuration = %v, want 8.0", *s.NetDuration)
	}
	if *s.BreakDuration != 0.0 {
		t.Errorf("breakDuration = %v, want 0", *s.BreakDuration)
	}
}

// TestPairEntries_DoubleStart は連続STARTの前者が要確認セッションになることを検証する。
func TestPairEntries_DoubleStart(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []*model.TimeEntry{
		entry("e1", "user-1", model.EntryTypeStart, base),
		entry("e2", "user-1", model.EntryTypeStart, base.Add(time.Hour)),
		entry("e3", "user-1", model.EntryTypeStop, base.Add(9*time.Hour)),
	}

	sessions, entryIDs, orphaned := PairEntries(entries)

	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if len(entryIDs) != 3 {
		t.Errorf("expected 3 entry IDs, got %d", len(entryIDs))
	}
	if orphaned != 1 {
		t.Errorf("orphaned = %d, want 1", orphaned)
	}

	// 先頭の要確認セッションは長さ0
	if *sessions[0].TotalDuration != 0 {
		t.Errorf("orphan totalDuration = %v, want 0", *sessions[0].TotalDuration)
	}
	if sessions[0].Note == "" {
		t.Error("expected orphan session to carry a review note")
	}
	// 2番目のSTARTがSTOPとペアになる
	if *sessions[1].TotalDuration != 8.0 {
		t.Errorf("paired totalDuration = %v, want 8.0", *sessions[1].TotalDuration)
	}
}

// TestPairEntries_StopWithoutStart は先行STARTのないSTOPが要確認になることを検証する。
func TestPairEntries_StopWithoutStart(t *testing.T) {
	base := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	entries := []*model.TimeEntry{
		entry("e1", "user-1", model.EntryTypeStop, base),
	}

	sessions, entryIDs, orphaned := PairEntries(entries)

	if len(sessions) != 1 || orphaned != 1 {
		t.Fatalf("sessions = %d, orphaned = %d, want 1/1", len(sessions), orphaned)
	}
	if len(entryIDs) != 1 {
		t.Errorf("expected 1 entry ID, got %d", len(entryIDs))
	}
}

// TestPairEntries_TrailingStartBecomesOrphan は末尾の未ペアSTARTが要確認セッションになることを検証する。
func TestPairEntries_TrailingStartBecomesOrphan(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []*model.TimeEntry{
		entry("e1", "user-1", model.EntryTypeStart, base),
		entry("e2", "user-1", model.EntryTypeStop, base.Add(8*time.Hour)),
		entry("e3", "user-1", model.EntryTypeStart, base.Add(24*time.Hour)),
	}

	sessions, entryIDs, orphaned := PairEntries(entries)

	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if orphaned != 1 {
		t.Errorf("orphaned = %d, want 1", orphaned)
	}
	if len(entryIDs) != 3 {
		t.Fatalf("expected 3 entry IDs, got %d", len(entryIDs))
	}

	// e3は長さ0の要確認セッションとして移行される
	last := sessions[1]
	if *last.TotalDuration != 0 {
		t.Errorf("orphan totalDuration = %v, want 0", *last.TotalDuration)
	}
	if !last.StartTime.Equal(base.Add(24 * time.Hour)) {
		t.Errorf("orphan startTime = %v, want %v", last.StartTime, base.Add(24*time.Hour))
	}
	if last.Note == "" {
		t.Error("expected orphan session to carry a review note")
	}
}

// TestPairEntries_TwoOrphanedStarts は連続する2つのSTARTがどちらも要確認セッションになり、
// 1つの長時間セッションに統合されないことを検証する。
func TestPairEntries_TwoOrphanedStarts(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	entries := []*model.TimeEntry{
		entry("e1", "user-1", model.EntryTypeStart, base),
		entry("e2", "user-1", model.EntryTypeStart, base.Add(time.Hour)),
	}

	sessions, entryIDs, orphaned := PairEntries(entries)

	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if orphaned != 2 {
		t.Errorf("orphaned = %d, want 2", orphaned)
	}
	if len(entryIDs) != 2 {
		t.Errorf("expected 2 entry IDs, got %d", len(entryIDs))
	}
	for i, s := range sessions {
		if *s.TotalDuration != 0 {
			t.Errorf("sessions[%d] totalDuration = %v, want 0", i, *s.TotalDuration)
		}
		if s.Status != model.SessionStatusCompleted {
			t.Errorf("sessions[%d] status = %q, want COMPLETED", i, s.Status)
		}
	}
}

// TestReconciler_Run_PerUserIsolation はユーザー単位で失敗が隔離されることを検証する。
func TestReconciler_Run_PerUserIsolation(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := &mockEntryRepo{
		listUserIDsFn: func(ctx context.Context) ([]string, error) {
			return []string{"user-bad", "user-good"}, nil
		},
		listByUserFn: func(ctx context.Context, userID string) ([]*model.TimeEntry, error) {
			if userID == "user-bad" {
				return nil, errors.New("database gone")
			}
			return []*model.TimeEntry{
				entry("e1", userID, model.EntryTypeStart, base),
				entry("e2", userID, model.EntryTypeStop, base.Add(8*time.Hour)),
			}, nil
		},
	}

	r := NewReconciler(repo, testLogger(), nil)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.UsersFailed != 1 {
		t.Errorf("usersFailed = %d, want 1", result.UsersFailed)
	}
	if result.UsersProcessed != 1 {
		t.Errorf("usersProcessed = %d, want 1", result.UsersProcessed)
	}
	if result.Reconciled != 2 {
		t.Errorf("reconciled = %d, want 2", result.Reconciled)
	}
	if result.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", result.Sessions)
	}
}

// TestReconciler_Run_NoEntries は変換対象なしでも成功することを検証する。
func TestReconciler_Run_NoEntries(t *testing.T) {
	r := NewReconciler(&mockEntryRepo{}, testLogger(), nil)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.UsersProcessed != 0 || result.Sessions != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

// TestReconciler_Run_SaveFailureDoesNotMarkProcessed は保存失敗がそのユーザーの失敗になることを検証する。
func TestReconciler_Run_SaveFailureDoesNotMarkProcessed(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := &mockEntryRepo{
		listUserIDsFn: func(ctx context.Context) ([]string, error) {
			return []string{"user-1"}, nil
		},
		listByUserFn: func(ctx context.Context, userID string) ([]*model.TimeEntry, error) {
			return []*model.TimeEntry{
				entry("e1", userID, model.EntryTypeStart, base),
				entry("e2", userID, model.EntryTypeStop, base.Add(time.Hour)),
			}, nil
		},
		saveReconciledFn: func(ctx context.Context, sessions []*model.WorkSession, entryIDs []string) error {
			return errors.New("constraint violation")
		},
	}

	r := NewReconciler(repo, testLogger(), nil)

	result, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.UsersFailed != 1 {
		t.Errorf("usersFailed = %d, want 1", result.UsersFailed)
	}
	if result.Reconciled != 0 {
		t.Errorf("reconciled = %d, want 0", result.Reconciled)
	}
}
