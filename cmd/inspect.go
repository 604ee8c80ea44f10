// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds/config"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show every field and octet of each packet",
	Long: `Print a field-by-field breakdown and hex dump of each packet, followed by
a per-APID summary with sequence gaps. Packets that fail to decode are
dumped raw and inspection continues.`,
	Example: `  ccsdspack inspect -i packets.bin --variant PusC --crc`,
	RunE:    runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	tpl, err := loadLayout()
	if err != nil {
		return err
	}
	conn, _, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	return inspectStream(cmd.OutOrStdout(), conn, tpl)
}

func inspectStream(w io.Writer, r io.Reader, tpl *config.Template) error {
	pl, err := newPipeline(r, tpl)
	if err != nil {
		return err
	}
	m := ccsds.NewManager()
	for i := 0; ; i++ {
		ev, err := pl.step()
		if endOfStream(err) {
			break
		}
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}

		fmt.Fprintf(w, "=== Packet %d (offset %d) ===\n", i, ev.offset)
		if ev.decodeErr != nil {
			fmt.Fprintf(w, "Decode error: %v\n", ev.decodeErr)
		} else {
			fmt.Fprint(w, ccsds.FormatPacket(ev.packet))
			if err := m.Append(ev.packet); err != nil {
				return err
			}
		}
		for _, a := range ev.anomalies {
			fmt.Fprintf(w, "Anomaly: %s: %s\n", a.Type, a.Message)
		}
		fmt.Fprintf(w, "Raw (%d octets):\n", len(ev.raw))
		fmt.Fprint(w, ccsds.FormatBuffer(ev.raw))
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, ccsds.FormatManager(m))
	return nil
}
