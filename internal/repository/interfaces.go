// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateFromInvite はユーザー作成と招待トークンの消費を同一トランザクションで行う。
	// トークンが既に消費済みの場合はInviteUsedエラーを返し、ユーザーは作成されない。
	CreateFromInvite(ctx context.Context, user *model.User, inviteToken string) error

	// Update はユーザーの属性（名前、役割、週間目標時間）を更新する。
	Update(ctx context.Context, user *model.User) error

	// UpdatePasswordHash はパスワードハッシュのみを更新する。
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するwork_sessions、time_entriesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// ListByCompany は指定会社の全ユーザーをメールアドレス順で返す。
	ListByCompany(ctx context.Context, companyID string) ([]*model.User, error)
}

// CompanyRepository は会社データの永続化インターフェース。
type CompanyRepository interface {
	// FindByID は指定IDの会社を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Company, error)

	// Create は会社を作成する。
	Create(ctx context.Context, company *model.Company) error

	// Update は会社情報（名前、住所、国コード）を更新する。
	Update(ctx context.Context, company *model.Company) error
}

// InviteRepository は招待データの永続化インターフェース。
type InviteRepository interface {
	// Create は招待を作成する。
	Create(ctx context.Context, invite *model.Invite) error

	// FindByToken はトークンで招待を検索する。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Invite, error)

	// ListByCompany は指定会社の招待一覧を作成日時の降順で返す。
	ListByCompany(ctx context.Context, companyID string) ([]*model.Invite, error)

	// DeleteExpired は期限切れかつ未使用の招待を削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// WorkSessionRepository は勤務セッションデータの永続化インターフェース。
type WorkSessionRepository interface {
	// Create は新規セッションを作成する。
	// ユーザーごとの進行中セッション1件制約は部分一意インデックスで強制され、
	// 違反した場合はAlreadyActiveエラーを返す。
	Create(ctx context.Context, session *model.WorkSession) error

	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.WorkSession, error)

	// FindActiveByUser はユーザーの進行中（ONGOING/PAUSED）セッションを取得する。
	// 存在しない場合はnilを返す。
	FindActiveByUser(ctx context.Context, userID string) (*model.WorkSession, error)

	// FindLastCompletedByUser はユーザーの最新の完了済みセッションを取得する。
	// 存在しない場合はnilを返す。
	FindLastCompletedByUser(ctx context.Context, userID string) (*model.WorkSession, error)

	// ListByUser はユーザーのセッション一覧を開始時刻の降順で返す。
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.WorkSession, error)

	// ListByUserSince は指定時刻以降に開始したユーザーのセッションを開始時刻の昇順で返す。
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*model.WorkSession, error)

	// Stop はセッションを終了する。単一トランザクション内で、
	// セッション行をFOR UPDATEでロックし、未終了の休憩をstopTimeで強制終了し、
	// 休憩合計をロック中の休憩リストから再計算してDurationフィールドを確定する。
	// 既に完了済みの場合はAlreadyCompletedエラーを返す。
	Stop(ctx context.Context, sessionID string, stopTime time.Time) (*model.WorkSession, error)

	// EditCompleted は完了済みセッションの更新と監査レコードの追記を
	// 同一トランザクションで行う。監査の書き込みに失敗した場合は更新もロールバックされる。
	// セッションがCOMPLETEDでなくなっていた場合はNotCompletedエラーを返す。
	EditCompleted(ctx context.Context, session *model.WorkSession, edit *model.WorkSessionEdit) error

	// DeleteByID は指定IDのセッションを削除する。休憩と監査レコードはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// BreakRepository は休憩データの永続化インターフェース。
type BreakRepository interface {
	// StartBreak は休憩の作成とセッションのPAUSEDへの遷移を同一トランザクションで行う。
	// セッションごとの未終了休憩1件制約は部分一意インデックスで強制され、
	// 違反した場合はBreakInProgressエラーを返す。
	// セッションがONGOINGでない場合はInvalidStateエラーを返す。
	StartBreak(ctx context.Context, br *model.Break) error

	// EndOpenBreak は未終了の休憩をendTimeで終了し、休憩時間を確定して、
	// セッションをONGOINGに戻す。未終了の休憩が存在しない場合はNoOpenBreakエラーを返す。
	EndOpenBreak(ctx context.Context, sessionID string, endTime time.Time) (*model.Break, error)

	// ListBySession はセッションの休憩一覧を開始時刻の昇順で返す。
	ListBySession(ctx context.Context, sessionID string) ([]*model.Break, error)
}

// WorkSessionEditRepository はセッション監査レコードの読み取りインターフェース。
// 書き込みはWorkSessionRepository.EditCompletedが同一トランザクション内で行う。
type WorkSessionEditRepository interface {
	// ListBySession はセッションの監査レコードを編集日時の降順（新しい順）で返す。
	ListBySession(ctx context.Context, sessionID string) ([]*model.WorkSessionEdit, error)
}

// TimeEntryRepository は旧台帳打刻データの永続化インターフェース。
type TimeEntryRepository interface {
	// Create は打刻を作成する。
	Create(ctx context.Context, entry *model.TimeEntry) error

	// FindByID は指定IDの打刻を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TimeEntry, error)

	// FindLastByUser はユーザーの最新の打刻を取得する。存在しない場合はnilを返す。
	FindLastByUser(ctx context.Context, userID string) (*model.TimeEntry, error)

	// ListByUser はユーザーの打刻一覧を時刻の降順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.TimeEntry, error)

	// ListByCompany は指定会社の全打刻を時刻の降順で返す。
	ListByCompany(ctx context.Context, companyID string) ([]*model.TimeEntry, error)

	// EditWithAudit は打刻の更新と監査レコードの追記を同一トランザクションで行う。
	// 監査の書き込みに失敗した場合は更新もロールバックされる。
	EditWithAudit(ctx context.Context, entry *model.TimeEntry, edit *model.TimeEntryEdit) error

	// DeleteByID は指定IDの打刻を削除する。
	DeleteByID(ctx context.Context, id string) error

	// ListUnmigratedUserIDs は未移行の打刻を持つユーザーIDの一覧を返す。
	ListUnmigratedUserIDs(ctx context.Context) ([]string, error)

	// ListUnmigratedByUser はユーザーの未移行打刻を時刻の昇順で返す。
	ListUnmigratedByUser(ctx context.Context, userID string) ([]*model.TimeEntry, error)

	// SaveReconciled は変換済みセッションの作成と元打刻の移行済みマークを
	// 同一トランザクションで行う。途中で失敗した場合は全体がロールバックされ、
	// 再実行時に同じ打刻が再処理される（重複セッションは生成されない）。
	SaveReconciled(ctx context.Context, sessions []*model.WorkSession, entryIDs []string) error
}

// TimeEntryEditRepository は打刻監査レコードの読み取りインターフェース。
// 書き込みはTimeEntryRepository.EditWithAuditが同一トランザクション内で行う。
type TimeEntryEditRepository interface {
	// ListByEntry は打刻の監査レコードを編集日時の降順（新しい順）で返す。
	ListByEntry(ctx context.Context, entryID string) ([]*model.TimeEntryEdit, error)
}
