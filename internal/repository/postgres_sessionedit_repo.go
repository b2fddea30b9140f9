package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/timecard/internal/model"
)

// PostgresWorkSessionEditRepo はPostgreSQLを使用したセッション監査レコードリポジトリ。
// 監査レコードは追記専用であり、書き込みはWorkSessionRepository.EditCompletedが
// エンティティ更新と同一トランザクションで行う。
type PostgresWorkSessionEditRepo struct {
	db *sql.DB
}

// NewPostgresWorkSessionEditRepo はPostgresWorkSessionEditRepoを生成する。
func NewPostgresWorkSessionEditRepo(db *sql.DB) *PostgresWorkSessionEditRepo {
	return &PostgresWorkSessionEditRepo{db: db}
}

// ListBySession はセッションの監査レコードを編集日時の降順（新しい順）で返す。
func (r *PostgresWorkSessionEditRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.WorkSessionEdit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, work_session_id, edited_by, changes, reason, edited_at
		 FROM work_session_edits WHERE work_session_id = $1 ORDER BY edited_at DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session edits: %w", err)
	}
	defer rows.Close()

	var edits []*model.WorkSessionEdit
	for rows.Next() {
		edit := &model.WorkSessionEdit{}
		var changesJSON []byte
		if err := rows.Scan(
			&edit.ID, &edit.WorkSessionID, &edit.EditedBy,
			&changesJSON, &edit.Reason, &edit.EditedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session edit: %w", err)
		}
		if err := json.Unmarshal(changesJSON, &edit.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edit changes: %w", err)
		}
		edits = append(edits, edit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session edits: %w", err)
	}

	return edits, nil
}

// compile-time interface check
var _ WorkSessionEditRepository = (*PostgresWorkSessionEditRepo)(nil)
