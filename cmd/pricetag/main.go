// Command pricetag は値札生成サービスを起動する。
//
//	pricetag [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/pricetag/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pricetag: %v\n", err)
		os.Exit(1)
	}
}
