// Package model はドメインモデルを定義する。
package model

import "time"

// SessionStatus は勤務セッションの状態を表す。
type SessionStatus string

const (
	// SessionStatusOngoing は勤務中の状態。
	SessionStatusOngoing SessionStatus = "ONGOING"
	// SessionStatusPaused は休憩中の状態。
	SessionStatusPaused SessionStatus = "PAUSED"
	// SessionStatusCompleted は終了済みの状態。終端であり再開できない。
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// IsActive はセッションが進行中（ONGOINGまたはPAUSED）かどうかを返す。
func (s SessionStatus) IsActive() bool {
	return s == SessionStatusOngoing || s == SessionStatusPaused
}

// WorkSession は1回の連続した勤務期間を表す。
// ユーザーごとに進行中（ONGOING/PAUSED）のセッションは最大1件。
// COMPLETEDへの遷移時にDuration各フィールドが確定し、以降は監査付き編集でのみ変更できる。
type WorkSession struct {
	ID            string
	UserID        string
	StartTime     time.Time
	EndTime       *time.Time
	Status        SessionStatus
	TotalDuration *float64 // 総勤務時間（時間単位）。COMPLETED時に確定する。
	BreakDuration *float64 // 休憩時間の合計（時間単位）。COMPLETED時に確定する。
	NetDuration   *float64 // 正味勤務時間（時間単位）。total - break を0でクランプした値。
	Note          string
	Project       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BreakType は休憩の種別を表す。
type BreakType string

const (
	// BreakTypePaid は有給休憩。
	BreakTypePaid BreakType = "PAID"
	// BreakTypeUnpaid は無給休憩。種別未指定時のデフォルト。
	BreakTypeUnpaid BreakType = "UNPAID"
)

// Break はセッション内にネストした休憩を表す。
// 1つのWorkSessionに排他的に所有される。
// セッションごとに未終了（EndTime == nil）の休憩は最大1件で、
// 親セッションがPAUSEDの間だけ存在できる。
type Break struct {
	ID            string
	WorkSessionID string
	StartTime     time.Time
	EndTime       *time.Time
	Duration      *float64 // 休憩時間（時間単位）。終了時に確定する。
	Type          BreakType
	Note          string
	CreatedAt     time.Time
}

// FieldChange はフィールド1つ分の変更前後の値を表す。
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// WorkSessionEdit は完了済みセッションへの変更1回分の監査レコードを表す。
// 作成後は不変であり、セッションごとに追記専用のログを構成する。
// Changesには実際に値が変わったフィールドのみが含まれる。
type WorkSessionEdit struct {
	ID            string
	WorkSessionID string
	EditedBy      string
	Changes       map[string]FieldChange
	Reason        string
	EditedAt      time.Time
}
