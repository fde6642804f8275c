package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。カウンタ整合ジョブもバックグラウンドで動く。
	CommandServe Command = "serve"
	// CommandMigrate は埋め込みマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandReconcile はいいね数・保存数の整合ジョブを1回実行して終了する。
	CommandReconcile Command = "reconcile"
	// CommandHealthcheck は/healthを叩いて結果を終了コードで返す。distrolessのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	"serve":       CommandServe,
	"migrate":     CommandMigrate,
	"reconcile":   CommandReconcile,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand はargsの先頭からサブコマンドを解析する。
// 引数なし、または未知のサブコマンドはCommandServeとして扱い、knownで区別できるようにする。
func ParseCommand(args []string) (cmd Command, known bool) {
	if len(args) == 0 {
		return CommandServe, true
	}
	if c, ok := knownCommands[args[0]]; ok {
		return c, true
	}
	return CommandServe, false
}
