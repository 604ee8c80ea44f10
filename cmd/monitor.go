// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor a live packet stream for errors and sequence gaps",
	Long: `Decode packets as they arrive and track errors with statistics.

This command checks each packet and detects:
  - Length and CRC errors
  - Secondary header variant and length mismatches
  - Template mismatches (version, type, APID, secondary header flag)
  - Sequence count gaps per APID
  - Statistics and trends (packet rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid
packets too. Template checks need a configuration with validation_enable.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", false, "Use terminal UI")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	tpl, err := loadLayout()
	if err != nil {
		return err
	}
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	pl, err := newPipeline(conn, tpl)
	if err != nil {
		return err
	}
	logger.Info("monitoring", zap.String("source", connInfo))

	if useTUI {
		return runTUIMode(pl, connInfo)
	}
	return runTextMode(cmd.OutOrStdout(), pl, connInfo)
}

const (
	ansiRed    = "\033[1;31m"
	ansiGreen  = "\033[1;32m"
	ansiYellow = "\033[1;33m"
	ansiReset  = "\033[0m"
)

// printDecodeError prints a decode error in highlighted format
func printDecodeError(w io.Writer, ev packetEvent) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] %sDECODE ERROR:%s %v\n", timestamp, ansiRed, ansiReset, ev.decodeErr)
	fmt.Fprintf(w, "  Offset: %d\n", ev.offset)
	for i, a := range ev.anomalies {
		fmt.Fprintf(w, "  Issue %d: %s\n", i+1, a.Message)
	}
	if len(ev.raw) > 0 {
		fmt.Fprint(w, ccsds.FormatBuffer(ev.raw))
	}
	fmt.Fprintf(w, "  >>> DECODE FAILED <<<\n\n")
}

// printValidationErrors prints the anomalies of a decoded packet
func printValidationErrors(w io.Writer, packet *ccsds.Packet, anomalies []ccsds.ValidationError) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] %sVALIDATION ERROR:%s %s\n", timestamp, ansiYellow, ansiReset, ccsds.FormatPacketLine(packet))

	for i, a := range anomalies {
		color := ansiYellow
		switch a.Type {
		case ccsds.AnomalyChecksumError, ccsds.AnomalyLengthMismatch, ccsds.AnomalyTruncated,
			ccsds.AnomalySecondaryLengthMismatch:
			color = ansiRed
		}
		fmt.Fprintf(w, "  Issue %d: %s%s%s\n", i+1, color, a.Message, ansiReset)
		if expected, ok := a.Details["expected"]; ok {
			fmt.Fprintf(w, "    %s: expected %v\n", a.Type, expected)
		}
	}

	fmt.Fprintf(w, "  >>> PACKET REJECTED <<<\n\n")
}

// printSequenceGap prints a sequence gap notice
func printSequenceGap(w io.Writer, g *ccsds.SequenceGap) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] %sSEQUENCE GAP:%s %s\n\n", timestamp, ansiYellow, ansiReset, ccsds.FormatSequenceGap(*g))
}

// streamMsg carries one pipeline event into the TUI
type streamMsg struct {
	event packetEvent
}

// streamEndMsg reports the end of the packet source
type streamEndMsg struct {
	err error
}

// runTUIMode runs the monitor in TUI mode
func runTUIMode(pl *pipeline, connInfo string) error {
	m := initialModel(connInfo, statsInterval, showAll, pl.stats)
	m.observe = pl.observe
	p := tea.NewProgram(m)

	go func() {
		for {
			ev, err := pl.next()
			if err != nil {
				p.Send(streamEndMsg{err: err})
				return
			}
			p.Send(streamMsg{event: ev})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs the monitor in text mode
func runTextMode(w io.Writer, pl *pipeline, connInfo string) error {
	fmt.Fprintf(w, "ccsdspack - Packet Monitor\n")
	fmt.Fprintf(w, "Connection: %s\n", connInfo)
	fmt.Fprintf(w, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(w, "Mode: All packets\n")
	} else {
		fmt.Fprintf(w, "Mode: Errors only\n")
	}
	fmt.Fprintf(w, "Press Ctrl+C to exit\n\n")

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	events := make(chan packetEvent, 10)
	done := make(chan error, 1)
	go func() {
		for {
			ev, err := pl.next()
			if err != nil {
				done <- err
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev := <-events:
			pl.observe(&ev)
			printEvent(w, ev, showAll)

		case err := <-done:
			// Drain events queued before the stream ended
			for len(events) > 0 {
				ev := <-events
				pl.observe(&ev)
				printEvent(w, ev, showAll)
			}
			fmt.Fprintln(w)
			fmt.Fprint(w, pl.stats.String())
			if endOfStream(err) {
				logger.Info("stream ended", zap.Uint64("packets", pl.stats.TotalPackets))
				return nil
			}
			return fmt.Errorf("read failed: %w", err)

		case <-statsTicker.C:
			pl.stats.CalculateRates()
			fmt.Fprintln(w)
			fmt.Fprint(w, pl.stats.String())
			fmt.Fprintln(w)
		}
	}
}

func printEvent(w io.Writer, ev packetEvent, all bool) {
	switch {
	case ev.decodeErr != nil:
		printDecodeError(w, ev)
	case len(ev.anomalies) > 0:
		printValidationErrors(w, ev.packet, ev.anomalies)
	case all:
		fmt.Fprintf(w, "[%s] %sOK:%s %s\n", ev.packet.Timestamp().Format("15:04:05.000"), ansiGreen, ansiReset,
			ccsds.FormatPacketLine(ev.packet))
	}
	if ev.gap != nil {
		printSequenceGap(w, ev.gap)
	}
}
