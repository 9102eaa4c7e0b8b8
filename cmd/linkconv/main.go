// Command linkconv 是链接转换引擎的命令行入口：转换链接、生成代购链接、查看代购站目录、执行数据库迁移。
//
//	linkconv convert "https://m.tb.cn/h.abc" --agent hoobuy
//	cat links.txt | linkconv convert --stdin --offline
//	linkconv generate --agent cnfans --platform weidian --id 7460
//	linkconv migrate up --dry-run
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
