// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds/config"
)

var validateQuiet bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check packets against the configured layout",
	Long: `Validate every packet of a stream and report all anomalies.

Each packet is checked for a coherent length and CRC trailer. With a
configuration that sets validation_enable, the version, type, APID, secondary
header flag and variant are also compared against the configured template.
Sequence gaps are reported per APID.

The command exits non-zero when any packet is invalid.`,
	Example: `  ccsdspack validate -c packet.cfg -i packets.bin`,
	RunE:    runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVarP(&validateQuiet, "quiet", "q", false, "Only print the summary")
}

func runValidate(cmd *cobra.Command, args []string) error {
	tpl, err := loadLayout()
	if err != nil {
		return err
	}
	conn, info, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("validating", zap.String("source", info), zap.Bool("template", tpl.ValidationEnabled))

	invalid, err := validateStream(cmd.OutOrStdout(), conn, tpl, validateQuiet)
	if err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d invalid packets", invalid)
	}
	return nil
}

// validateStream reports the anomalies of every packet of r on w and
// returns the number of invalid packets.
func validateStream(w io.Writer, r io.Reader, tpl *config.Template, quiet bool) (int, error) {
	pl, err := newPipeline(r, tpl)
	if err != nil {
		return 0, err
	}
	invalid := 0
	for {
		ev, err := pl.step()
		if endOfStream(err) {
			break
		}
		if err != nil {
			return invalid, fmt.Errorf("read failed: %w", err)
		}
		if !ev.ok() {
			invalid++
		}
		if quiet {
			continue
		}
		switch {
		case ev.decodeErr != nil:
			printDecodeError(w, ev)
		case len(ev.anomalies) > 0:
			printValidationErrors(w, ev.packet, ev.anomalies)
		}
		if ev.gap != nil {
			printSequenceGap(w, ev.gap)
		}
	}
	pl.stats.CalculateRates()
	fmt.Fprint(w, pl.stats.String())
	return invalid, nil
}
