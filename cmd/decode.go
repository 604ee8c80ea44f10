// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds/config"
)

var (
	decodeFormat     string
	decodeOutput     string
	decodeKeepGoing  bool
	decodeReassemble int
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a stream of CCSDS packets",
	Long: `Decode concatenated CCSDS Space Packets and print them.

Decoding stops at the first packet that fails to decode unless --keep-going
is set, in which case failures are logged and skipped. The command exits
non-zero when any packet failed.

With --reassemble APID the application data of that APID is rebuilt from its
segments and written out raw instead of the packets.`,
	Example: `  ccsdspack decode -i packets.bin --variant PusA --crc
  ccsdspack decode -c packet.cfg -i packets.bin --format json
  ccsdspack decode -c packet.cfg -i packets.bin --reassemble 100 -o image.bin`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVar(&decodeFormat, "format", formatText, "Output format: binary, hex, text, line, json or cbor")
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", "", "Output file (stdout by default)")
	decodeCmd.Flags().BoolVar(&decodeKeepGoing, "keep-going", false, "Skip packets that fail to decode")
	decodeCmd.Flags().IntVar(&decodeReassemble, "reassemble", -1, "Write the reassembled application data of this APID")
}

func runDecode(cmd *cobra.Command, args []string) error {
	if err := checkFormat(decodeFormat); err != nil {
		return err
	}
	tpl, err := loadLayout()
	if err != nil {
		return err
	}
	conn, info, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("decoding", zap.String("source", info))

	m, failed, err := decodeStream(conn, tpl, decodeKeepGoing)
	if err != nil {
		return err
	}

	out := io.WriteCloser(nopWriteCloser{cmd.OutOrStdout()})
	if decodeOutput != "" && decodeOutput != "-" {
		if out, err = CreateFileConnection(decodeOutput); err != nil {
			return err
		}
	}
	err = writeAndClose(out, func(w io.Writer) error {
		if decodeReassemble < 0 {
			return writePackets(w, m, decodeFormat)
		}
		data, err := m.ApplicationData(uint16(decodeReassemble))
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write application data: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("decoded", zap.Int("packets", m.Len()), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d packets failed to decode", failed)
	}
	return nil
}

// decodeStream collects the packets of r. Without keepGoing the first
// decode failure is returned with its packet index and offset.
func decodeStream(r io.Reader, tpl *config.Template, keepGoing bool) (*ccsds.Manager, int, error) {
	pl, err := newPipeline(r, tpl)
	if err != nil {
		return nil, 0, err
	}
	m := ccsds.NewManager()
	failed := 0
	for i := 0; ; i++ {
		ev, err := pl.step()
		if endOfStream(err) {
			return m, failed, nil
		}
		if err != nil {
			return nil, failed, fmt.Errorf("read failed after %d packets: %w", i, err)
		}
		if ev.decodeErr != nil {
			if !keepGoing {
				return nil, failed, fmt.Errorf("packet %d at offset %d: %w", i, ev.offset, ev.decodeErr)
			}
			failed++
			logger.Warn("skipping packet", zap.Int("index", i), zap.Int64("offset", ev.offset), zap.Error(ev.decodeErr))
			continue
		}
		if err := m.Append(ev.packet); err != nil {
			return nil, failed, err
		}
	}
}
