// Package audit は監査レコードの差分計算と生成を提供する。
// 監査レコードは追記専用で、実際に値が変わったフィールドのみを記録する。
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/model"
)

// DiffSession はセッションの編集前後を比較し、変更されたフィールドのみの
// 差分マップを返す。変更がない場合は空のマップを返す。
// 時刻はJSONに安定した形で残すためRFC3339文字列で記録する。
func DiffSession(before, after *model.WorkSession) map[string]model.FieldChange {
	changes := make(map[string]model.FieldChange)

	if !before.StartTime.Equal(after.StartTime) {
		changes["startTime"] = model.FieldChange{
			Old: before.StartTime.Format(time.RFC3339),
			New: after.StartTime.Format(time.RFC3339),
		}
	}
	if !timePtrEqual(before.EndTime, after.EndTime) {
		changes["endTime"] = model.FieldChange{
			Old: formatTimePtr(before.EndTime),
			New: formatTimePtr(after.EndTime),
		}
	}
	if before.Note != after.Note {
		changes["note"] = model.FieldChange{Old: before.Note, New: after.Note}
	}
	if before.Project != after.Project {
		changes["project"] = model.FieldChange{Old: before.Project, New: after.Project}
	}

	return changes
}

// DiffEntry は打刻の編集前後を比較し、変更されたフィールドのみの差分マップを返す。
// 種別（type）は編集対象外のため比較しない。
func DiffEntry(before, after *model.TimeEntry) map[string]model.FieldChange {
	changes := make(map[string]model.FieldChange)

	if !before.Time.Equal(after.Time) {
		changes["time"] = model.FieldChange{
			Old: before.Time.Format(time.RFC3339),
			New: after.Time.Format(time.RFC3339),
		}
	}
	if before.Note != after.Note {
		changes["note"] = model.FieldChange{Old: before.Note, New: after.Note}
	}

	return changes
}

// NewSessionEdit はセッション監査レコードを生成する。
func NewSessionEdit(sessionID, editedBy, reason string, changes map[string]model.FieldChange) *model.WorkSessionEdit {
	return &model.WorkSessionEdit{
		ID:            uuid.NewString(),
		WorkSessionID: sessionID,
		EditedBy:      editedBy,
		Changes:       changes,
		Reason:        reason,
		EditedAt:      time.Now(),
	}
}

// NewEntryEdit は打刻監査レコードを生成する。
func NewEntryEdit(entryID, editedBy, reason string, changes map[string]model.FieldChange) *model.TimeEntryEdit {
	return &model.TimeEntryEdit{
		ID:          uuid.NewString(),
		TimeEntryID: entryID,
		EditedBy:    editedBy,
		Changes:     changes,
		Reason:      reason,
		EditedAt:    time.Now(),
	}
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
