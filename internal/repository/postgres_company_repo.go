package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/timecard/internal/model"
)

// PostgresCompanyRepo はPostgreSQLを使用した会社リポジトリ。
type PostgresCompanyRepo struct {
	db *sql.DB
}

// NewPostgresCompanyRepo はPostgresCompanyRepoを生成する。
func NewPostgresCompanyRepo(db *sql.DB) *PostgresCompanyRepo {
	return &PostgresCompanyRepo{db: db}
}

// FindByID は指定IDの会社を取得する。見つからない場合はnilを返す。
func (r *PostgresCompanyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	company := &model.Company{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, address, country, created_at, updated_at FROM companies WHERE id = $1`,
		id,
	).Scan(&company.ID, &company.Name, &company.Address, &company.Country, &company.CreatedAt, &company.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}

	return company, nil
}

// Create は会社を作成する。
func (r *PostgresCompanyRepo) Create(ctx context.Context, company *model.Company) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, address, country, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		company.ID, company.Name, company.Address, company.Country,
		company.CreatedAt, company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// Update は会社情報（名前、住所、国コード）を更新する。
func (r *PostgresCompanyRepo) Update(ctx context.Context, company *model.Company) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE companies SET name = $2, address = $3, country = $4, updated_at = now() WHERE id = $1`,
		company.ID, company.Name, company.Address, company.Country,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewCompanyNotFoundError()
	}
	return nil
}

// compile-time interface check
var _ CompanyRepository = (*PostgresCompanyRepo)(nil)
