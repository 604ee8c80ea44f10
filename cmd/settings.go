// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix is prepended to every settings variable, e.g. CCSDS_LOG_LEVEL.
const envPrefix = "CCSDS"

// Settings are process settings read from the environment.
type Settings struct {
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"console"`
	MetricsFile string `envconfig:"METRICS_FILE"`
	// Password authenticates WebSocket sources. There is no flag for it
	// so it never lands in shell history.
	Password string `envconfig:"PASSWORD"`
}

// loadSettings reads an optional .env file and then the environment.
// Variables already set in the environment win over the file.
func loadSettings(envFile string) (Settings, error) {
	var s Settings
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return s, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if err := envconfig.Process(envPrefix, &s); err != nil {
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	return s, nil
}
