package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/hrbridge/internal/config"
	"github.com/srg/hrbridge/internal/supervisor"
	"github.com/srg/hrbridge/internal/uart"
)

var configPath string

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("%w: load config: %v", ErrSetupFailure, err)
	}

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	tr, err := uart.OpenSerial(supervisor.DevicePath, uart.SerialOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrSetupFailure, supervisor.DevicePath, err)
	}

	sup := supervisor.New(tr, cfg, logger)
	if err := sup.Run(context.Background()); err != nil {
		return fmt.Errorf("%w: %v", ErrSetupFailure, err)
	}
	return nil
}
