package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/timecard/internal/model"
)

// PostgresTimeEntryRepo はPostgreSQLを使用した旧台帳打刻リポジトリ。
type PostgresTimeEntryRepo struct {
	db *sql.DB
}

// NewPostgresTimeEntryRepo はPostgresTimeEntryRepoを生成する。
func NewPostgresTimeEntryRepo(db *sql.DB) *PostgresTimeEntryRepo {
	return &PostgresTimeEntryRepo{db: db}
}

const entryColumns = `id, user_id, time, type, note, migrated_at, created_at`

func scanEntry(row interface{ Scan(...any) error }) (*model.TimeEntry, error) {
	entry := &model.TimeEntry{}
	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.Time, &entry.Type,
		&entry.Note, &entry.MigratedAt, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Create は打刻を作成する。
func (r *PostgresTimeEntryRepo) Create(ctx context.Context, entry *model.TimeEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO time_entries (id, user_id, time, type, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.Time, entry.Type, entry.Note, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create time entry: %w", err)
	}
	return nil
}

// FindByID は指定IDの打刻を取得する。見つからない場合はnilを返す。
func (r *PostgresTimeEntryRepo) FindByID(ctx context.Context, id string) (*model.TimeEntry, error) {
	entry, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find time entry: %w", err)
	}
	return entry, nil
}

// FindLastByUser はユーザーの最新の打刻を取得する。存在しない場合はnilを返す。
func (r *PostgresTimeEntryRepo) FindLastByUser(ctx context.Context, userID string) (*model.TimeEntry, error) {
	entry, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE user_id = $1 ORDER BY time DESC LIMIT 1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last time entry: %w", err)
	}
	return entry, nil
}

// ListByUser はユーザーの打刻一覧を時刻の降順で返す。
func (r *PostgresTimeEntryRepo) ListByUser(ctx context.Context, userID string) ([]*model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE user_id = $1 ORDER BY time DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByCompany は指定会社の全打刻を時刻の降順で返す。
func (r *PostgresTimeEntryRepo) ListByCompany(ctx context.Context, companyID string) ([]*model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.user_id, e.time, e.type, e.note, e.migrated_at, e.created_at
		 FROM time_entries e
		 JOIN users u ON u.id = e.user_id
		 WHERE u.company_id = $1 ORDER BY e.time DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list company time entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*model.TimeEntry, error) {
	var entries []*model.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time entries: %w", err)
	}
	return entries, nil
}

// EditWithAudit は打刻の更新と監査レコードの追記を同一トランザクションで行う。
// 監査の書き込みに失敗した場合は更新もロールバックされる。
// 種別（type）は更新対象に含めない。
func (r *PostgresTimeEntryRepo) EditWithAudit(ctx context.Context, entry *model.TimeEntry, edit *model.TimeEntryEdit) error {
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
		`INSERT INTO time_entry_edits (id, time_entry_id, edited_by, changes, reason, edited_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		edit.ID, edit.TimeEntryID, edit.EditedBy, changesJSON, edit.Reason, edit.EditedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	// 2. 打刻を更新（時刻とメモのみ）
	result, err := tx.ExecContext(ctx,
		`UPDATE time_entries SET time = $2, note = $3 WHERE id = $1`,
		entry.ID, entry.Time, entry.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to update time entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewEntryNotFoundError(entry.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteByID は指定IDの打刻を削除する。
func (r *PostgresTimeEntryRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM time_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewEntryNotFoundError(id)
	}
	return nil
}

// ListUnmigratedUserIDs は未移行の打刻を持つユーザーIDの一覧を返す。
func (r *PostgresTimeEntryRepo) ListUnmigratedUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM time_entries WHERE migrated_at IS NULL ORDER BY user_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmigrated user IDs: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user IDs: %w", err)
	}

	return userIDs, nil
}

// ListUnmigratedByUser はユーザーの未移行打刻を時刻の昇順で返す。
func (r *PostgresTimeEntryRepo) ListUnmigratedByUser(ctx context.Context, userID string) ([]*model.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE user_id = $1 AND migrated_at IS NULL ORDER BY time ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmigrated time entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// SaveReconciled は変換済みセッションの作成と元打刻の移行済みマークを
// 同一トランザクションで行う。全体が成功するか、全体がロールバックされるかの
// いずれかであり、部分的な移行状態は残らない。
func (r *PostgresTimeEntryRepo) SaveReconciled(ctx context.Context, sessions []*model.WorkSession, entryIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sessions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO work_sessions (id, user_id, start_time, end_time, status,
			     total_duration, break_duration, net_duration, note, project, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			s.ID, s.UserID, s.StartTime, s.EndTime, s.Status,
			s.TotalDuration, s.BreakDuration, s.NetDuration,
			s.Note, s.Project, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reconciled session: %w", err)
		}
	}

	for _, entryID := range entryIDs {
		_, err := tx.ExecContext(ctx,
			`UPDATE time_entries SET migrated_at = now() WHERE id = $1`,
			entryID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark entry migrated: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ TimeEntryRepository = (*PostgresTimeEntryRepo)(nil)
