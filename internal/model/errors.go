// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, session, entry, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAlreadyActive      = "ALREADY_ACTIVE"
	ErrCodeAlreadyCompleted   = "ALREADY_COMPLETED"
	ErrCodeNotCompleted       = "NOT_COMPLETED"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeBreakInProgress    = "BREAK_IN_PROGRESS"
	ErrCodeNoOpenBreak        = "NO_OPEN_BREAK"
	ErrCodeTypeImmutable      = "TYPE_IMMUTABLE"
	ErrCodeReasonRequired     = "REASON_REQUIRED"
	ErrCodeInvalidRange       = "INVALID_RANGE"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeEntryNotFound      = "ENTRY_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeCompanyNotFound    = "COMPANY_NOT_FOUND"
	ErrCodeInviteNotFound     = "INVITE_NOT_FOUND"
	ErrCodeInviteExpired      = "INVITE_EXPIRED"
	ErrCodeInviteUsed         = "INVITE_USED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidEntryType   = "INVALID_ENTRY_TYPE"
	ErrCodeCannotStart        = "CANNOT_START"
	ErrCodeCannotStop         = "CANNOT_STOP"
)

// NewAlreadyActiveError は進行中セッションが既に存在する場合のエラーを生成する。
func NewAlreadyActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyActive,
		Message:  "進行中のセッションが既に存在します。",
		Category: "session",
		Action:   "現在のセッションを終了してから、新しいセッションを開始してください。",
	}
}

// NewAlreadyCompletedError は完了済みセッションを再度終了しようとした場合のエラーを生成する。
func NewAlreadyCompletedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyCompleted,
		Message:  "セッションは既に完了しています。",
		Category: "session",
		Action:   "完了済みセッションの変更には編集機能を使用してください。",
	}
}

// NewNotCompletedError は未完了セッションを編集しようとした場合のエラーを生成する。
func NewNotCompletedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotCompleted,
		Message:  "進行中のセッションは編集できません。",
		Category: "session",
		Action:   "セッションを終了してから編集してください。",
	}
}

// NewInvalidStateError はセッション状態が操作の前提を満たさない場合のエラーを生成する。
func NewInvalidStateError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("現在のセッション状態では %s を実行できません。", operation),
		Category: "session",
		Action:   "セッションの状態を確認してください。",
	}
}

// NewBreakInProgressError は休憩が既に進行中の場合のエラーを生成する。
func NewBreakInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeBreakInProgress,
		Message:  "休憩が既に進行中です。",
		Category: "session",
		Action:   "現在の休憩を終了してから、新しい休憩を開始してください。",
	}
}

// NewNoOpenBreakError は進行中の休憩が存在しない場合のエラーを生成する。
func NewNoOpenBreakError() *APIError {
	return &APIError{
		Code:     ErrCodeNoOpenBreak,
		Message:  "進行中の休憩が見つかりません。",
		Category: "session",
		Action:   "休憩を開始してから終了してください。",
	}
}

// NewTypeImmutableError は打刻種別を変更しようとした場合のエラーを生成する。
// 種別の変更はSTART/STOPペアリングを暗黙に反転させるため許可しない。
func NewTypeImmutableError() *APIError {
	return &APIError{
		Code:     ErrCodeTypeImmutable,
		Message:  "打刻種別（START/STOP）は編集できません。",
		Category: "entry",
		Action:   "種別を変更する場合は打刻を削除して再作成してください。",
	}
}

// NewReasonRequiredError は編集理由が未入力の場合のエラーを生成する。
func NewReasonRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeReasonRequired,
		Message:  "編集理由の入力が必要です。",
		Category: "validation",
		Action:   "変更内容の理由を入力してください。",
	}
}

// NewInvalidRangeError は終了時刻が開始時刻より前の場合のエラーを生成する。
func NewInvalidRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRange,
		Message:  "終了時刻が開始時刻より前になっています。",
		Category: "validation",
		Action:   "開始時刻と終了時刻を確認してください。",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定されたセッションが見つかりません: %s", sessionID),
		Category: "session",
		Action:   "セッションIDを確認してください。",
	}
}

// NewEntryNotFoundError は打刻未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された打刻が見つかりません: %s", entryID),
		Category: "entry",
		Action:   "打刻IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewCompanyNotFoundError は会社が見つからない場合のエラーを生成する。
func NewCompanyNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeCompanyNotFound,
		Message:  "会社が見つかりません。",
		Category: "system",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewInviteNotFoundError は招待トークンが無効な場合のエラーを生成する。
func NewInviteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeInviteNotFound,
		Message:  "招待が見つかりません。",
		Category: "auth",
		Action:   "招待リンクを確認するか、管理者に再発行を依頼してください。",
	}
}

// NewInviteExpiredError は招待トークンが期限切れの場合のエラーを生成する。
func NewInviteExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeInviteExpired,
		Message:  "招待の有効期限が切れています。",
		Category: "auth",
		Action:   "管理者に招待の再発行を依頼してください。",
	}
}

// NewInviteUsedError は使用済み招待トークンの場合のエラーを生成する。
func NewInviteUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeInviteUsed,
		Message:  "この招待は既に使用されています。",
		Category: "auth",
		Action:   "管理者に招待の再発行を依頼してください。",
	}
}

// NewForbiddenError はアクセス権限がない場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このリソースへのアクセス権限がありません。",
		Category: "auth",
		Action:   "自分のリソース、または同じ会社のユーザーのリソースのみ操作できます。",
	}
}

// NewInvalidCredentialsError は認証情報が不正な場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewPasswordTooShortError はパスワードが短すぎる場合のエラーを生成する。
func NewPasswordTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  "パスワードは8文字以上で入力してください。",
		Category: "validation",
		Action:   "より長いパスワードを設定してください。",
	}
}

// NewEmailTakenError はメールアドレスが既に登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidEntryTypeError は打刻種別が不正な場合のエラーを生成する。
func NewInvalidEntryTypeError(entryType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEntryType,
		Message:  fmt.Sprintf("無効な打刻種別です: %s", entryType),
		Category: "validation",
		Action:   "種別には START または STOP を指定してください。",
	}
}

// NewCannotStartError は直前の打刻がSTARTのまま再度STARTしようとした場合のエラーを生成する。
func NewCannotStartError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotStart,
		Message:  "既に勤務を開始しています。",
		Category: "entry",
		Action:   "STOP打刻を記録してから開始してください。",
	}
}

// NewCannotStopError は開始していない勤務を終了しようとした場合のエラーを生成する。
func NewCannotStopError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotStop,
		Message:  "勤務を開始していません。",
		Category: "entry",
		Action:   "START打刻を記録してから終了してください。",
	}
}
