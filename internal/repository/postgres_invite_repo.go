package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/timecard/internal/model"
)

// PostgresInviteRepo はPostgreSQLを使用した招待リポジトリ。
type PostgresInviteRepo struct {
	db *sql.DB
}

// NewPostgresInviteRepo はPostgresInviteRepoを生成する。
func NewPostgresInviteRepo(db *sql.DB) *PostgresInviteRepo {
	return &PostgresInviteRepo{db: db}
}

// Create は招待を作成する。
func (r *PostgresInviteRepo) Create(ctx context.Context, invite *model.Invite) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invites (id, email, token, company_id, role, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		invite.ID, invite.Email, invite.Token, invite.CompanyID,
		invite.Role, invite.ExpiresAt, invite.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// FindByToken はトークンで招待を検索する。見つからない場合はnilを返す。
func (r *PostgresInviteRepo) FindByToken(ctx context.Context, token string) (*model.Invite, error) {
	invite := &model.Invite{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, token, company_id, role, expires_at, used_at, created_at
		 FROM invites WHERE token = $1`,
		token,
	).Scan(
		&invite.ID, &invite.Email, &invite.Token, &invite.CompanyID,
		&invite.Role, &invite.ExpiresAt, &invite.UsedAt, &invite.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invite: %w", err)
	}

	return invite, nil
}

// ListByCompany は指定会社の招待一覧を作成日時の降順で返す。
func (r *PostgresInviteRepo) ListByCompany(ctx context.Context, companyID string) ([]*model.Invite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, token, company_id, role, expires_at, used_at, created_at
		 FROM invites WHERE company_id = $1 ORDER BY created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*model.Invite
	for rows.Next() {
		invite := &model.Invite{}
		if err := rows.Scan(
			&invite.ID, &invite.Email, &invite.Token, &invite.CompanyID,
			&invite.Role, &invite.ExpiresAt, &invite.UsedAt, &invite.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invites: %w", err)
	}

	return invites, nil
}

// DeleteExpired は期限切れかつ未使用の招待を削除し、削除件数を返す。
func (r *PostgresInviteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM invites WHERE expires_at < $1 AND used_at IS NULL`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invites: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ InviteRepository = (*PostgresInviteRepo)(nil)
