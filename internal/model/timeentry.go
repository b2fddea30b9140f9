// Package model はドメインモデルを定義する。
package model

import "time"

// EntryType は旧台帳の打刻種別を表す。
type EntryType string

const (
	// EntryTypeStart は勤務開始の打刻。
	EntryTypeStart EntryType = "START"
	// EntryTypeStop は勤務終了の打刻。
	EntryTypeStop EntryType = "STOP"
)

// TimeEntry は旧ポイント台帳の打刻1件を表す。
// WorkSessionモデルに置き換えられたが、移行のために保持されている。
// MigratedAtは勤務セッションへの変換済みマーカーで、再変換を防ぐ。
type TimeEntry struct {
	ID         string
	UserID     string
	Time       time.Time
	Type       EntryType
	Note       string
	MigratedAt *time.Time
	CreatedAt  time.Time
}

// TimeEntryEdit は打刻への変更1回分の監査レコードを表す。
// WorkSessionEditと同じ追記専用の契約に従う。
// 種別（START/STOP）はペアリングロジックを反転させるため編集対象外。
type TimeEntryEdit struct {
	ID          string
	TimeEntryID string
	EditedBy    string
	Changes     map[string]FieldChange
	Reason      string
	EditedAt    time.Time
}
