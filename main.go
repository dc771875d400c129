package main

import (
	"flag"
	"fmt"
	"os"

	"vigil-triage/config"
	"vigil-triage/core/appbootstrap"
	"vigil-triage/core/utils"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger()
	logger.SetDebug(cfg.Debug)

	if err := appbootstrap.Run(cfg, logger); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
