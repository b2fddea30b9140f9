package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/timecard/internal/duration"
	"github.com/hitoshi/timecard/internal/model"
)

// PostgresWorkSessionRepo はPostgreSQLを使用した勤務セッションリポジトリ。
// 進行中セッション1件制約はwork_sessions_one_active_per_user部分一意インデックスで、
// 状態遷移の競合はトランザクション内の行ロックとWHERE句の状態ガードで強制する。
type PostgresWorkSessionRepo struct {
	db *sql.DB
}

// NewPostgresWorkSessionRepo はPostgresWorkSessionRepoを生成する。
func NewPostgresWorkSessionRepo(db *sql.DB) *PostgresWorkSessionRepo {
	return &PostgresWorkSessionRepo{db: db}
}

const sessionColumns = `id, user_id, start_time, end_time, status, total_duration, break_duration, net_duration, note, project, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.WorkSession, error) {
	s := &model.WorkSession{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.StartTime, &s.EndTime, &s.Status,
		&s.TotalDuration, &s.BreakDuration, &s.NetDuration,
		&s.Note, &s.Project, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create は新規セッションを作成する。
// 同一ユーザーの進行中セッションが既に存在する場合、部分一意インデックスの
// 違反としてAlreadyActiveエラーを返す。同時Startの2リクエスト目はここで弾かれる。
func (r *PostgresWorkSessionRepo) Create(ctx context.Context, session *model.WorkSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_sessions (id, user_id, start_time, status, note, project, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.UserID, session.StartTime, session.Status,
		session.Note, session.Project, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "work_sessions_one_active_per_user") {
			return model.NewAlreadyActiveError()
		}
		return fmt.Errorf("failed to create work session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresWorkSessionRepo) FindByID(ctx context.Context, id string) (*model.WorkSession, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find work session: %w", err)
	}
	return session, nil
}

// FindActiveByUser はユーザーの進行中（ONGOING/PAUSED）セッションを取得する。
// 存在しない場合はnilを返す。
func (r *PostgresWorkSessionRepo) FindActiveByUser(ctx context.Context, userID string) (*model.WorkSession, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions
		 WHERE user_id = $1 AND status IN ('ONGOING', 'PAUSED')`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return session, nil
}

// FindLastCompletedByUser はユーザーの最新の完了済みセッションを取得する。
// 存在しない場合はnilを返す。
func (r *PostgresWorkSessionRepo) FindLastCompletedByUser(ctx context.Context, userID string) (*model.WorkSession, error) {
	session, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions
		 WHERE user_id = $1 AND status = 'COMPLETED'
		 ORDER BY end_time DESC LIMIT 1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last completed session: %w", err)
	}
	return session, nil
}

// ListByUser はユーザーのセッション一覧を開始時刻の降順で返す。
func (r *PostgresWorkSessionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.WorkSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions
		 WHERE user_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListByUserSince は指定時刻以降に開始したユーザーのセッションを開始時刻の昇順で返す。
func (r *PostgresWorkSessionRepo) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*model.WorkSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions
		 WHERE user_id = $1 AND start_time >= $2 ORDER BY start_time ASC`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions since: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]*model.WorkSession, error) {
	var sessions []*model.WorkSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work sessions: %w", err)
	}
	return sessions, nil
}

// Stop はセッションを終了する。
// セッション行をFOR UPDATEでロックしてから未終了の休憩を強制終了し、
// 休憩合計を同一トランザクション内で再計算するため、
// 並行するEndBreakとStopが古い休憩リストからbreakDurationを計算することはない。
func (r *PostgresWorkSessionRepo) Stop(ctx context.Context, sessionID string, stopTime time.Time) (*model.WorkSession, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. セッション行をロック
	session, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	))
	if err == sql.ErrNoRows {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock work session: %w", err)
	}

	if session.Status == model.SessionStatusCompleted {
		return nil, model.NewAlreadyCompletedError()
	}

	// 2. 未終了の休憩を終了時刻で強制終了。
	// 終了時刻が休憩開始より前の場合は休憩開始にクランプし、長さ0として閉じる。
	_, err = tx.ExecContext(ctx,
		`UPDATE breaks
		 SET end_time = GREATEST($2, start_time),
		     duration = GREATEST(EXTRACT(EPOCH FROM ($2 - start_time)) / 3600, 0)
		 WHERE work_session_id = $1 AND end_time IS NULL`,
		sessionID, stopTime,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to force-close open break: %w", err)
	}

	// 3. 休憩合計をロック中の休憩リストから再計算
	var breakTotal float64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration), 0) FROM breaks WHERE work_session_id = $1`,
		sessionID,
	).Scan(&breakTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to sum breaks: %w", err)
	}

	// 4. Durationフィールドを確定
	total, err := duration.ElapsedHours(session.StartTime, stopTime)
	if err != nil {
		return nil, err
	}
	net := duration.NetDuration(total, breakTotal)
	if breakTotal > total {
		// クランプ発生は不整合データの兆候として記録する
		slog.Warn("break total exceeds session total, clamping net duration to zero",
			slog.String("session_id", sessionID),
			slog.Float64("total_hours", total),
			slog.Float64("break_hours", breakTotal),
		)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE work_sessions
		 SET end_time = $2, status = 'COMPLETED',
		     total_duration = $3, break_duration = $4, net_duration = $5,
		     updated_at = now()
		 WHERE id = $1`,
		sessionID, stopTime, total, breakTotal, net,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete work session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	session.EndTime = &stopTime
	session.Status = model.SessionStatusCompleted
	session.TotalDuration = &total
	session.BreakDuration = &breakTotal
	session.NetDuration = &net
	return session, nil
}

// EditCompleted は完了済みセッションの更新と監査レコードの追記を
// 同一トランザクションで行う。監査の書き込みに失敗した場合は更新もロールバックされ、
// エンティティが監査なしで変更された状態は生じない。
func (r *PostgresWorkSessionRepo) EditCompleted(ctx context.Context, session *model.WorkSession, edit *model.WorkSessionEdit) error {
	changesJSON, err := json.Marshal(edit.Changes)
	if err != nil {
		return fmt.Errorf("failed to marshal edit changes: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. 監査レコードを追記
	_, err = tx.ExecContext(ctx,
		`INSERT INTO work_session_edits (id, work_session_id, edited_by, changes, reason, edited_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		edit.ID, edit.WorkSessionID, edit.EditedBy, changesJSON, edit.Reason, edit.EditedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	// 2. セッションを更新（COMPLETEDの場合のみ）
	result, err := tx.ExecContext(ctx,
		`UPDATE work_sessions
		 SET start_time = $2, end_time = $3, note = $4, project = $5,
		     total_duration = $6, net_duration = $7, updated_at = now()
		 WHERE id = $1 AND status = 'COMPLETED'`,
		session.ID, session.StartTime, session.EndTime, session.Note, session.Project,
		session.TotalDuration, session.NetDuration,
	)
	if err != nil {
		return fmt.Errorf("failed to update work session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotCompletedError()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteByID は指定IDのセッションを削除する。休憩と監査レコードはCASCADE削除される。
func (r *PostgresWorkSessionRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM work_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete work session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewSessionNotFoundError(id)
	}
	return nil
}

// compile-time interface check
var _ WorkSessionRepository = (*PostgresWorkSessionRepo)(nil)
