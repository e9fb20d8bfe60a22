package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configureLogger creates a logger with the appropriate log level based on
// flags and the loaded config. --log-level takes precedence over
// --verbose, which in turn takes precedence over the config file's
// log_level.
func configureLogger(cmd *cobra.Command, configLevel string) (*logrus.Logger, error) {
	logLevel := logrus.InfoLevel

	logLevelStr, _ := cmd.Flags().GetString("log-level")
	switch {
	case logLevelStr != "":
		lvl, err := logrus.ParseLevel(logLevelStr)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
		logLevel = lvl
	default:
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logLevel = logrus.DebugLevel
		} else if configLevel != "" {
			if lvl, err := logrus.ParseLevel(configLevel); err == nil {
				logLevel = lvl
			}
		}
	}

	logger := logrus.New()
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
