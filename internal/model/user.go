// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleAdmin は同一会社内の全ユーザーのデータを閲覧・編集できる管理者。
	RoleAdmin Role = "ADMIN"
	// RoleUser は自分のデータのみ操作できる一般ユーザー。
	RoleUser Role = "USER"
)

// User はサービス利用ユーザーを表す。
// 会社（テナント）に所属し、同時に保持できる進行中セッションは最大1件。
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Role              Role
	CompanyID         string
	WeeklyHoursTarget float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Company はテナント境界を表す。
// 管理者のクロスユーザーアクセスはすべて会社単位でスコープされる。
type Company struct {
	ID        string
	Name      string
	Address   string
	Country   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Invite はメールアドレスを会社と役割に紐付ける期限付き招待を表す。
// トークンは一度だけ消費できる（UsedAtで使用済みを記録する）。
type Invite struct {
	ID        string
	Email     string
	Token     string
	CompanyID string
	Role      Role
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
