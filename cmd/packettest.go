// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

// Exit codes of packet_test
const (
	exitTimeout    = 1
	exitConnection = 2
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test a connection by waiting for a valid CCSDS packet",
	Long: `Wait for a valid CCSDS packet on the connection until timeout.

This command connects to a serial port, WebSocket or file and waits for a
packet that decodes cleanly (length, secondary header and CRC trailer all
consistent). Packets that fail to decode are counted and skipped.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

// ExitError carries a process exit code
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for an Execute error
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	tpl, err := loadLayout()
	if err != nil {
		return err
	}
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return &ExitError{Code: exitConnection, Err: fmt.Errorf("connection error: %w", err)}
	}
	defer conn.Close()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "ccsdspack - Packet Test\n")
	fmt.Fprintf(w, "Connection: %s\n", connInfo)
	fmt.Fprintf(w, "Timeout: %d seconds\n", packetTestTimeout)
	fmt.Fprintf(w, "Waiting for valid CCSDS packet...\n\n")

	pl, err := newPipeline(conn, tpl)
	if err != nil {
		return err
	}
	return waitForPacket(w, pl, time.Duration(packetTestTimeout)*time.Second)
}

func waitForPacket(w io.Writer, pl *pipeline, timeout time.Duration) error {
	packetChan := make(chan packetEvent, 1)
	errChan := make(chan error, 1)

	go func() {
		invalid := 0
		for {
			ev, err := pl.next()
			if err != nil {
				errChan <- err
				return
			}
			if !ev.ok() {
				invalid++
				continue
			}
			if invalid > 0 {
				fmt.Fprintf(w, "(skipped %d invalid packets)\n", invalid)
			}
			packetChan <- ev
			return
		}
	}()

	select {
	case ev := <-packetChan:
		p := ev.packet
		fmt.Fprintf(w, "SUCCESS: Received valid packet\n")
		fmt.Fprintf(w, "  APID: %d (0x%03X)\n", p.APID(), p.APID())
		fmt.Fprintf(w, "  Type: %s\n", p.Type())
		fmt.Fprintf(w, "  Sequence: %s %d\n", p.SequenceFlags(), p.SequenceCount())
		fmt.Fprintf(w, "  Length: %d octets\n", p.Len())
		if crc, ok := p.Checksum(); ok {
			fmt.Fprintf(w, "  CRC: 0x%04X\n", crc)
		}
		return nil

	case err := <-errChan:
		if endOfStream(err) {
			return &ExitError{Code: exitTimeout, Err: errors.New("stream ended without a valid packet")}
		}
		return &ExitError{Code: exitConnection, Err: fmt.Errorf("read error: %w", err)}

	case <-time.After(timeout):
		return &ExitError{Code: exitTimeout, Err: fmt.Errorf("TIMEOUT: no valid packet received within %s", timeout)}
	}
}
