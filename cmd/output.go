// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
)

// Output formats
const (
	formatBinary = "binary"
	formatHex    = "hex"
	formatText   = "text"
	formatLine   = "line"
	formatJSON   = "json"
	formatCBOR   = "cbor"
)

var outputFormats = []string{formatBinary, formatHex, formatText, formatLine, formatJSON, formatCBOR}

func checkFormat(format string) error {
	for _, f := range outputFormats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (use %s)", format, strings.Join(outputFormats, ", "))
}

// writePackets renders every packet of m to w in the given format
func writePackets(w io.Writer, m *ccsds.Manager, format string) error {
	var err error
	switch format {
	case formatBinary:
		_, err = w.Write(m.Encode())
	case formatHex:
		for _, p := range m.All() {
			if _, err = fmt.Fprintln(w, strings.ToUpper(hex.EncodeToString(p.Encode()))); err != nil {
				break
			}
		}
	case formatText:
		for i, p := range m.All() {
			if _, err = fmt.Fprintf(w, "Packet %d\n%s\n", i, ccsds.FormatPacket(p)); err != nil {
				break
			}
		}
	case formatLine:
		for _, p := range m.All() {
			if _, err = fmt.Fprintln(w, ccsds.FormatPacketLine(p)); err != nil {
				break
			}
		}
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(m.Records())
	case formatCBOR:
		var data []byte
		if data, err = ccsds.MarshalRecordsCBOR(m.Records()); err == nil {
			_, err = w.Write(data)
		}
	default:
		return checkFormat(format)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	return nil
}

// writeAndClose runs write against out and closes it. A close failure is
// reported when the write itself succeeded.
func writeAndClose(out io.WriteCloser, write func(io.Writer) error) error {
	err := write(out)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	return err
}

// parseHex accepts hex octets with optional spaces, colons or 0x prefixes
func parseHex(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "0x", "")
	s = strings.ReplaceAll(s, "0X", "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', ',':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return b, nil
}
