// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ExoSpaceLabs/CCSDSPack/internal/metrics"
	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds/config"
)

var (
	encodeData     string
	encodeDataFile string
	encodeAPID     uint16
	encodeType     string
	encodeSeq      uint16
	encodeOutput   string
	encodeFormat   string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Wrap application data into CCSDS packets",
	Long: `Segment application data into CCSDS Space Packets.

The packet layout comes from --config or the layout flags. Data that does not
fit one packet is split into FIRST, CONTINUATION and LAST segments with
consecutive sequence counts, unless the configuration disables segmentation.

The data is given as hex (--data) or read from a file (--data-file, - for
stdin). Packets are written to --output (stdout by default) or, when --port or
--url is given, sent over that connection.`,
	Example: `  ccsdspack encode --apid 100 --variant PusA --crc --data "01 02 03" --format hex
  ccsdspack encode -c packet.cfg --data-file image.bin -o packets.bin`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringVar(&encodeData, "data", "", "Application data as hex")
	encodeCmd.Flags().StringVar(&encodeDataFile, "data-file", "", "Read application data from a file (- for stdin)")
	encodeCmd.Flags().Uint16Var(&encodeAPID, "apid", 0, "APID (overrides the configuration)")
	encodeCmd.Flags().StringVar(&encodeType, "type", "TM", "Packet type: TM or TC (overrides the configuration)")
	encodeCmd.Flags().Uint16Var(&encodeSeq, "seq", 0, "First sequence count (overrides the configuration)")
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "", "Output file (stdout by default)")
	encodeCmd.Flags().StringVar(&encodeFormat, "format", formatBinary, "Output format: binary, hex, text, line, json or cbor")
}

func runEncode(cmd *cobra.Command, args []string) error {
	if err := checkFormat(encodeFormat); err != nil {
		return err
	}
	data, err := readApplicationData(cmd.InOrStdin())
	if err != nil {
		return err
	}

	tpl, err := loadLayout()
	if err != nil {
		return err
	}
	if err := applyEncodeOverrides(cmd, tpl); err != nil {
		return err
	}

	m, err := encodePackets(tpl, data)
	if err != nil {
		return err
	}
	logger.Info("encoded application data",
		zap.Int("octets", len(data)),
		zap.Int("packets", m.Len()),
		zap.Uint16("apid", tpl.Fields.APID))

	out, dest, err := openEncodeOutput(cmd)
	if err != nil {
		return err
	}
	if err := writeAndClose(out, func(w io.Writer) error {
		return writePackets(w, m, encodeFormat)
	}); err != nil {
		return err
	}
	logger.Debug("packets written", zap.String("destination", dest), zap.String("format", encodeFormat))
	return nil
}

func readApplicationData(stdin io.Reader) ([]byte, error) {
	switch {
	case encodeData != "" && encodeDataFile != "":
		return nil, errors.New("use either --data or --data-file, not both")
	case encodeData != "":
		return parseHex(encodeData)
	case encodeDataFile == "-":
		return io.ReadAll(stdin)
	case encodeDataFile != "":
		data, err := os.ReadFile(encodeDataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read data: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("one of --data or --data-file must be specified")
}

func applyEncodeOverrides(cmd *cobra.Command, tpl *config.Template) error {
	flags := cmd.Flags()
	if flags.Changed("apid") {
		if encodeAPID > ccsds.MaxAPID {
			return fmt.Errorf("--apid %d out of range 0..%d", encodeAPID, ccsds.MaxAPID)
		}
		tpl.Fields.APID = encodeAPID
	}
	if flags.Changed("type") {
		t, err := parsePacketType(encodeType)
		if err != nil {
			return err
		}
		tpl.Fields.Type = t
	}
	if flags.Changed("seq") {
		if encodeSeq > ccsds.MaxSequenceCount {
			return fmt.Errorf("--seq %d out of range 0..%d", encodeSeq, ccsds.MaxSequenceCount)
		}
		tpl.Fields.SequenceCount = encodeSeq
	}
	return nil
}

// encodePackets segments data into packets shaped by tpl
func encodePackets(tpl *config.Template, data []byte) (*ccsds.Manager, error) {
	s, err := tpl.Segmenter()
	if err != nil {
		return nil, err
	}
	m := ccsds.NewManager()
	if err := s.SegmentInto(m, data); err != nil {
		return nil, err
	}
	metrics.PacketsEncoded.Add(float64(m.Len()))
	return m, nil
}

func openEncodeOutput(cmd *cobra.Command) (io.WriteCloser, string, error) {
	if wsURL != "" || portName != "" {
		conn, info, err := OpenConnection()
		if err != nil {
			return nil, "", err
		}
		return conn, info, nil
	}
	if encodeOutput == "" || encodeOutput == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, "stdout", nil
	}
	conn, err := CreateFileConnection(encodeOutput)
	if err != nil {
		return nil, "", err
	}
	return conn, encodeOutput, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
