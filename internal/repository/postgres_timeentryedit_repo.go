package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/timecard/internal/model"
)

// PostgresTimeEntryEditRepo はPostgreSQLを使用した打刻監査レコードリポジトリ。
// 書き込みはTimeEntryRepository.EditWithAuditがエンティティ更新と
// 同一トランザクションで行うため、このリポジトリは読み取り専用。
type PostgresTimeEntryEditRepo struct {
	db *sql.DB
}

// NewPostgresTimeEntryEditRepo はPostgresTimeEntryEditRepoを生成する。
func NewPostgresTimeEntryEditRepo(db *sql.DB) *PostgresTimeEntryEditRepo {
	return &PostgresTimeEntryEditRepo{db: db}
}

// ListByEntry は打刻の監査レコードを編集日時の降順（新しい順）で返す。
func (r *PostgresTimeEntryEditRepo) ListByEntry(ctx context.Context, entryID string) ([]*model.TimeEntryEdit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, time_entry_id, edited_by, changes, reason, edited_at
		 FROM time_entry_edits WHERE time_entry_id = $1 ORDER BY edited_at DESC`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entry edits: %w", err)
	}
	defer rows.Close()

	var edits []*model.TimeEntryEdit
	for rows.Next() {
		edit := &model.TimeEntryEdit{}
		var changesJSON []byte
		if err := rows.Scan(
			&edit.ID, &edit.TimeEntryID, &edit.EditedBy,
			&changesJSON, &edit.Reason, &edit.EditedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entry edit: %w", err)
		}
		if err := json.Unmarshal(changesJSON, &edit.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edit changes: %w", err)
		}
		edits = append(edits, edit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entry edits: %w", err)
	}

	return edits, nil
}

// compile-time interface check
var _ TimeEntryEditRepository = (*PostgresTimeEntryEditRepo)(nil)
