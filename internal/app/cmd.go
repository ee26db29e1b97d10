package app

import "strings"

// Command はサブコマンド名。
type Command string

const (
	// CommandServe は値札APIを提供する。引数なしの既定値。
	CommandServe Command = "serve"
	// CommandWorker は期限切れワークスペースを定期削除する（postgresのみ）。
	CommandWorker Command = "worker"
	// CommandMigrate はworkspace_stateスキーマを最新にする。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のserveの/healthを確認する。
	// distrolessイメージにはcurlがないため、バイナリ自身で行う。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 大文字小文字と前後の空白は無視し、不明な名前はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[strings.ToLower(strings.TrimSpace(args[0]))]; ok {
		return cmd
	}
	return CommandServe
}
