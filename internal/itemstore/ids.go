package itemstore

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator は商品IDを発行するインターフェース。
// 同一プロセス内で発行されたIDは、同じミリ秒内の大量発行でも重複してはならない。
type IDGenerator interface {
	Generate() snowflake.ID
}

// NewSnowflakeGenerator はsnowflakeノードによるIDGeneratorを生成する。
// IDはミリ秒単位の時刻とミリ秒内シーケンスで構成され、
// シーケンスは時刻が進んだ時だけリセットされる。
// 1ミリ秒内のシーケンスを使い切った場合は次のミリ秒まで待つため重複しない。
func NewSnowflakeGenerator(node int64) (IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", node, err)
	}
	return n, nil
}
