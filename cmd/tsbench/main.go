package main

import (
	"os"

	"github.com/tsbench/tsbench/cmd/tsbench/cmd"
	"github.com/tsbench/tsbench/internal/common/logging"
)

func main() {
	logging.MustConfigureApplicationLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
