// Package authz はリソースアクセスのスコープ判定を提供する。
// 判定は全操作で共通の述語であり、会社（テナント）境界を越えるアクセスは
// 役割に関係なく拒否される。
package authz

import "github.com/hitoshi/timecard/internal/model"

// CanAccess はactorがownerの所有するリソースを操作できるかどうかを返す。
// 自分自身のリソース、または管理者による同一会社内ユーザーのリソースのみ許可する。
func CanAccess(actor, owner *model.User) bool {
	if actor == nil || owner == nil {
		return false
	}
	if actor.ID == owner.ID {
		return true
	}
	return actor.Role == model.RoleAdmin && actor.CompanyID == owner.CompanyID
}

// CanAdminister はactorがownerに対して管理者権限の操作
// （役割変更、削除、招待など）を実行できるかどうかを返す。
// 管理者であっても他社のユーザーに対しては常にfalseを返す。
func CanAdminister(actor, owner *model.User) bool {
	if actor == nil || owner == nil {
		return false
	}
	return actor.Role == model.RoleAdmin && actor.CompanyID == owner.CompanyID
}

// Authorize はCanAccessの判定をエラーに変換する。
// リソースの存在は呼び出し側で確認済みであることが前提で、
// 存在するが他社に属する場合はForbiddenを返す。
func Authorize(actor, owner *model.User) error {
	if !CanAccess(actor, owner) {
		return model.NewForbiddenError()
	}
	return nil
}
