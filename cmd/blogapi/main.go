// Command blogapi はブログのエンゲージメントAPIサーバーを起動する。
//
// 使い方:
//
//	blogapi [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/folio/blogapi/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "blogapi: %v\n", err)
		os.Exit(1)
	}
}
