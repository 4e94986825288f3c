package main

import (
	"os"

	"github.com/guiyumin/vskip/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
