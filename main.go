package main

import (
	"os"

	"github.com/Snider/Slicer/cmd"
	"github.com/Snider/Slicer/pkg/logger"
)

var osExit = os.Exit

func main() {
	Main()
}

// Main runs the CLI. Verbose logging is switched on by the root command
// once flags are parsed.
func Main() {
	log := logger.New(false)
	if err := cmd.Execute(log); err != nil {
		log.Error("fatal error", "err", err)
		osExit(1)
	}
}
