package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boxrec/boxrec/cmd"
	"github.com/boxrec/boxrec/internal/buildinfo"
	"github.com/boxrec/boxrec/internal/conf"
	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = cmd.RootCommand(settings, buildinfo.NewContext(version, buildDate)).ExecuteContext(ctx)

	errors.FlushSentry(2 * time.Second)
	central := logger.Global()
	if err != nil {
		central.Module("main").Error("command failed", logger.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	_ = central.Close()
	if err != nil {
		return 1
	}
	return 0
}
