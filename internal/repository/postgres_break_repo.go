package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// PostgresBreakRepo はPostgreSQLを使用した休憩リポジトリ。
// 未終了休憩1件制約はbreaks_one_open_per_session部分一意インデックスで強制する。
type PostgresBreakRepo struct {
	db *sql.DB
}

// NewPostgresBreakRepo はPostgresBreakRepoを生成する。
func NewPostgresBreakRepo(db *sql.DB) *PostgresBreakRepo {
	return &PostgresBreakRepo{db: db}
}

// StartBreak は休憩の作成とセッションのPAUSEDへの遷移を同一トランザクションで行う。
// セッション側の遷移はstatus = 'ONGOING'を条件にしたUPDATEでガードし、
// 並行するStopやStartBreakと競合した場合は全体をロールバックする。
func (r *PostgresBreakRepo) StartBreak(ctx context.Context, br *model.Break) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. セッションをONGOING→PAUSEDに遷移（ONGOINGの場合のみ）
	result, err := tx.ExecContext(ctx,
		`UPDATE work_sessions SET status = 'PAUSED', updated_at = now()
		 WHERE id = $1 AND status = 'ONGOING'`,
		br.WorkSessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to pause work session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewInvalidStateError("休憩の開始")
	}

	// 2. 休憩を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO breaks (id, work_session_id, start_time, type, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		br.ID, br.WorkSessionID, br.StartTime, br.Type, br.Note, br.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "breaks_one_open_per_session") {
			return model.NewBreakInProgressError()
		}
		return fmt.Errorf("failed to create break: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// EndOpenBreak は未終了の休憩をendTimeで終了し、休憩時間を確定して、
// セッションをONGOINGに戻す。未終了の休憩が存在しない場合はNoOpenBreakエラーを返す。
func (r *PostgresBreakRepo) EndOpenBreak(ctx context.Context, sessionID string, endTime time.Time) (*model.Break, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. 未終了の休憩を終了し、時間を確定
	br := &model.Break{}
	err = tx.QueryRowContext(ctx,
		`UPDATE breaks
		 SET end_time = $2, duration = EXTRACT(EPOCH FROM ($2 - start_time)) / 3600
		 WHERE work_session_id = $1 AND end_time IS NULL
		 RETURNING id, work_session_id, start_time, end_time, duration, type, note, created_at`,
		sessionID, endTime,
	).Scan(
		&br.ID, &br.WorkSessionID, &br.StartTime, &br.EndTime,
		&br.Duration, &br.Type, &br.Note, &br.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.NewNoOpenBreakError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to end break: %w", err)
	}

	// 2. セッションをPAUSED→ONGOINGに戻す
	_, err = tx.ExecContext(ctx,
		`UPDATE work_sessions SET status = 'ONGOING', updated_at = now()
		 WHERE id = $1 AND status = 'PAUSED'`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resume work session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return br, nil
}

// ListBySession はセッションの休憩一覧を開始時刻の昇順で返す。
func (r *PostgresBreakRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Break, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, work_session_id, start_time, end_time, duration, type, note, created_at
		 FROM breaks WHERE work_session_id = $1 ORDER BY start_time ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list breaks: %w", err)
	}
	defer rows.Close()

	var breaks []*model.Break
	for rows.Next() {
		br := &model.Break{}
		if err := rows.Scan(
			&br.ID, &br.WorkSessionID, &br.StartTime, &br.EndTime,
			&br.Duration, &br.Type, &br.Note, &br.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan break: %w", err)
		}
		breaks = append(breaks, br)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate breaks: %w", err)
	}

	return breaks, nil
}

// compile-time interface check
var _ BreakRepository = (*PostgresBreakRepo)(nil)
