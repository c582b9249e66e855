package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iamvkosarev/telegpt/config"
	"github.com/iamvkosarev/telegpt/internal/app"
)

var cfgPath = flag.String("config", "config.yaml", "Path to yaml config, environment overrides it")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [console|telegram]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	mode := app.ModeConsole
	if flag.NArg() > 0 {
		mode = flag.Arg(0)
	}

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = app.Run(ctx, cfg, mode); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
