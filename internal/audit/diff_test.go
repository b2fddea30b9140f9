package audit

import (
	"testing"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// 変更がない場合に空の差分が返ることを検証
func TestDiffSession_NoChanges(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	before := &model.WorkSession{StartTime: start, EndTime: &end, Note: "memo", Project: "alpha"}
	after := &model.WorkSession{StartTime: start, EndTime: &end, Note: "memo", Project: "alpha"}

	changes := DiffSession(before, after)
	if len(changes) != 0 {
		t.Errorf("expected empty diff, got %v", changes)
	}
}

// 変更されたフィールドのみが差分に含まれることを検証
func TestDiffSession_OnlyChangedFields(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	newEnd := start.Add(9 * time.Hour)
	before := &model.WorkSession{StartTime: start, EndTime: &end, Note: "memo", Project: "alpha"}
	after := &model.WorkSession{StartTime: start, EndTime: &newEnd, Note: "corrected", Project: "alpha"}

	changes := DiffSession(before, after)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %v", len(changes), changes)
	}

	endChange, ok := changes["endTime"]
	if !ok {
		t.Fatal("expected endTime change")
	}
	if endChange.Old != end.Format(time.RFC3339) {
		t.Errorf("endTime old = %v, want %v", endChange.Old, end.Format(time.RFC3339))
	}
	if endChange.New != newEnd.Format(time.RFC3339) {
		t.Errorf("endTime new = %v, want %v", endChange.New, newEnd.Format(time.RFC3339))
	}

	noteChange, ok := changes["note"]
	if !ok {
		t.Fatal("expected note change")
	}
	if noteChange.Old != "memo" || noteChange.New != "corrected" {
		t.Errorf("note change = %v", noteChange)
	}

	if _, ok := changes["startTime"]; ok {
		t.Error("startTime should not be in diff")
	}
	if _, ok := changes["project"]; ok {
		t.Error("project should not be in diff")
	}
}

// タイムゾーン表記が異なっても同一時刻なら差分にならないことを検証
func TestDiffSession_EqualInstantDifferentZone(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	before := &model.WorkSession{StartTime: start}
	after := &model.WorkSession{StartTime: start.In(jst)}

	if changes := DiffSession(before, after); len(changes) != 0 {
		t.Errorf("expected empty diff for equal instants, got %v", changes)
	}
}

// 打刻の差分に種別が含まれないことを検証
func TestDiffEntry_TypeNotCompared(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	before := &model.TimeEntry{Time: at, Type: model.EntryTypeStart, Note: "a"}
	after := &model.TimeEntry{Time: at.Add(15 * time.Minute), Type: model.EntryTypeStop, Note: "a"}

	changes := DiffEntry(before, after)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d: %v", len(changes), changes)
	}
	if _, ok := changes["time"]; !ok {
		t.Error("expected time change")
	}
}

// NewSessionEditがIDと編集日時を採番することを検証
func TestNewSessionEdit_AssignsIDAndTimestamp(t *testing.T) {
	changes := map[string]model.FieldChange{
		"note": {Old: "a", New: "b"},
	}
	edit := NewSessionEdit("session-1", "admin-1", "入力ミスの修正", changes)

	if edit.ID == "" {
		t.Error("expected non-empty ID")
	}
	if edit.WorkSessionID != "session-1" {
		t.Errorf("WorkSessionID = %q", edit.WorkSessionID)
	}
	if edit.EditedBy != "admin-1" {
		t.Errorf("EditedBy = %q", edit.EditedBy)
	}
	if edit.Reason != "入力ミスの修正" {
		t.Errorf("Reason = %q", edit.Reason)
	}
	if edit.EditedAt.IsZero() {
		t.Error("expected EditedAt to be set")
	}
	if len(edit.Changes) != 1 {
		t.Errorf("expected 1 change, got %d", len(edit.Changes))
	}
}

// 未設定のEndTimeと設定済みEndTimeの比較が差分になることを検証
func TestDiffSession_NilEndTime(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	before := &model.WorkSession{StartTime: start}
	after := &model.WorkSession{StartTime: start, EndTime: &end}

	changes := DiffSession(before, after)
	endChange, ok := changes["endTime"]
	if !ok {
		t.Fatal("expected endTime change")
	}
	if endChange.Old != nil {
		t.Errorf("expected nil old value, got %v", endChange.Old)
	}
}
