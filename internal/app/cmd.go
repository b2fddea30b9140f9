package app

// Command はアプリケーションのサブコマンドを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動する。
	CommandServe Command = "serve"
	// CommandReconcile は旧台帳打刻をセッションに一括変換して終了する。
	CommandReconcile Command = "reconcile"
	// CommandMigrate はデータベースマイグレーションを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行する（Dockerヘルスチェック用）。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空、または未知のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "reconcile":
		return CommandReconcile
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
