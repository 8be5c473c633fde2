package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/wppbot/internal/config"
	"github.com/matheus3301/wppbot/internal/daemon"
	"github.com/matheus3301/wppbot/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default ~/.wppbot/config.toml)")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = session.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sessionName, err := session.Resolve(*sessionFlag, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.NopLogger,
		daemon.Module(daemon.Params{
			SessionName: sessionName,
			Config:      cfg,
			PairOutput:  os.Stderr,
		}),
	)

	app.Run()
}
