// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ExoSpaceLabs/CCSDSPack/internal/logging"
	"github.com/ExoSpaceLabs/CCSDSPack/internal/metrics"
)

var (
	// Packet layout flags
	configPath  string
	variantName string
	useCRC      bool
	crcPreset   string
	coverage    string

	// Packet source flags
	inputPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Process flags
	envFile     string
	logLevel    string
	logFormat   string
	metricsFile string
)

var (
	settings Settings
	logger   = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "ccsdspack",
	Short: "CCSDS Space Packet encoder, decoder and analyzer",
	Long: `ccsdspack - encode, decode and validate CCSDS Space Packets.

Packets carry a 6-octet primary header, an optional PUS secondary header
(PusA, PusB or PusC) and an optional CRC-16 trailer. The packet layout comes
from a configuration file (--config) or from the layout flags.

Packet sources:
  File:      --input packets.bin (use - for stdin)
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings are read from CCSDS_* environment variables, optionally loaded
from a .env file. The WebSocket password is read from CCSDS_PASSWORD, or
prompted interactively if not set.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVarP(&configPath, "config", "c", "", "Packet configuration file (key:type=value)")
	flags.StringVar(&variantName, "variant", "none", "Secondary header variant: none, PusA, PusB or PusC")
	flags.BoolVar(&useCRC, "crc", false, "Packets carry a CRC-16 trailer")
	flags.StringVar(&crcPreset, "crc-preset", "CRC-16/CCITT-FALSE", "CRC-16 variant for the trailer")
	flags.StringVar(&coverage, "coverage", "packet", "Octets protected by the trailer: packet or data_field")

	flags.StringVarP(&inputPath, "input", "i", "", "Read packets from a file (- for stdin)")

	flags.StringVarP(&portName, "port", "p", "", "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.StringVar(&envFile, "env-file", ".env", "Optional file with CCSDS_* settings")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (CCSDS_LOG_LEVEL)")
	flags.StringVar(&logFormat, "log-format", "", "Log format: console or json (CCSDS_LOG_FORMAT)")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics here on exit (CCSDS_METRICS_FILE)")
}

// setup loads settings and builds the logger. Flags override settings.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	settings, err = loadSettings(envFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	if logFormat != "" {
		settings.LogFormat = logFormat
	}
	if metricsFile != "" {
		settings.MetricsFile = metricsFile
	}

	cfg := logging.DefaultConfig()
	cfg.Level = settings.LogLevel
	cfg.Format = settings.LogFormat
	cfg.Output = zapcore.AddSync(cmd.ErrOrStderr())
	logger, err = logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	logger.Debug("settings loaded",
		zap.String("level", settings.LogLevel),
		zap.String("format", settings.LogFormat),
		zap.String("metrics_file", settings.MetricsFile))
	return nil
}

// Execute runs the root command and writes the metrics file, if any,
// whether or not the command succeeded.
func Execute() error {
	err := rootCmd.Execute()
	if settings.MetricsFile != "" {
		if werr := metrics.WriteTextfile(settings.MetricsFile); werr != nil {
			logger.Error("metrics export failed", zap.Error(werr))
		}
	}
	_ = logger.Sync()
	return err
}
