package main

import (
	"os"

	"github.com/blacktop/xpub/cmd"
	"github.com/blacktop/xpub/internal/logutil"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logutil.Errorf("%v", err)
		os.Exit(1)
	}
}
