package main

import (
	"fmt"
	"os"

	"github.com/countnet/countnet-go/cmd"
	"github.com/countnet/countnet-go/internal/conf"
	"github.com/countnet/countnet-go/internal/logging"
	"github.com/countnet/countnet-go/internal/telemetry"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	var closeLog func() error
	if settings.Main.Log.Enabled {
		closeLog, err = logging.EnableFileLogging(settings.Main.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error enabling file logging: %v\n", err)
			closeLog = nil
		}
	}

	if err := telemetry.Init(settings); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing telemetry: %v\n", err)
	}

	err = cmd.RootCommand(settings).Execute()

	if closeLog != nil {
		_ = closeLog()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		os.Exit(1)
	}
}
