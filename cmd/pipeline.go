// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 ExoSpaceLabs

package cmd

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/ExoSpaceLabs/CCSDSPack/internal/metrics"
	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds"
	"github.com/ExoSpaceLabs/CCSDSPack/pkg/ccsds/config"
)

// packetEvent is the outcome of reading one packet from a stream
type packetEvent struct {
	packet    *ccsds.Packet
	raw       []byte
	offset    int64
	decodeErr error
	anomalies []ccsds.ValidationError
	gap       *ccsds.SequenceGap
}

// ok reports whether the packet decoded without anomalies
func (e packetEvent) ok() bool {
	return e.decodeErr == nil && len(e.anomalies) == 0
}

// pipeline reads packets, validates them and keeps statistics
type pipeline struct {
	reader    *ccsds.Reader
	validator *ccsds.Validator
	stats     *ccsds.Statistics
}

func newPipeline(r io.Reader, tpl *config.Template) (*pipeline, error) {
	v, err := tpl.Validator()
	if err != nil {
		return nil, err
	}
	return &pipeline{
		reader:    ccsds.NewReader(r, tpl.Options()...),
		validator: v,
		stats:     ccsds.NewStatistics(),
	}, nil
}

// next reads and validates the next packet. Decode failures are reported
// in the event; the error is io.EOF at the end of the stream or a
// transport error. next does not touch the statistics, so it may run on
// a reader goroutine while observe runs elsewhere.
func (p *pipeline) next() (packetEvent, error) {
	start := p.reader.Offset()
	packet, err := p.reader.Next()
	ev := packetEvent{offset: start, raw: p.reader.Raw()}
	metrics.BytesRead.Add(float64(p.reader.Offset() - start))

	if err != nil {
		var pe *ccsds.PacketError
		if !errors.As(err, &pe) {
			return ev, err
		}
		ev.decodeErr = err
		if ev.raw != nil {
			ev.anomalies = p.validate(ev.raw)
		}
		return ev, nil
	}

	ev.packet = packet
	ev.anomalies = p.validate(ev.raw)
	return ev, nil
}

// observe records ev in the statistics and metrics and sets ev.gap.
func (p *pipeline) observe(ev *packetEvent) {
	if ev.decodeErr != nil {
		p.stats.Update(nil, ev.decodeErr, nil)
		metrics.ObserveDecodeError(ev.decodeErr)
		logger.Debug("decode failed", zap.Int64("offset", ev.offset), zap.Error(ev.decodeErr))
		return
	}

	ev.gap = p.stats.Update(ev.packet, nil, ev.anomalies)
	metrics.ObserveDecoded(ev.packet)
	if ev.gap != nil {
		metrics.ObserveGap(ev.gap)
		logger.Warn("sequence gap",
			zap.Uint16("apid", ev.gap.APID),
			zap.Uint16("previous", ev.gap.Previous),
			zap.Uint16("current", ev.gap.Current),
			zap.Int("missing", ev.gap.Missing()))
	}
	logger.Debug("packet",
		zap.Int64("offset", ev.offset),
		zap.Uint16("apid", ev.packet.APID()),
		zap.Uint16("seq", ev.packet.SequenceCount()),
		zap.Int("anomalies", len(ev.anomalies)))
}

// step reads one packet and records it
func (p *pipeline) step() (packetEvent, error) {
	ev, err := p.next()
	if err != nil {
		return ev, err
	}
	p.observe(&ev)
	return ev, nil
}

func (p *pipeline) validate(raw []byte) []ccsds.ValidationError {
	_, anomalies := p.validator.Validate(raw)
	return anomalies
}

// endOfStream reports whether err ends a stream without being a failure
func endOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrConnectionClosed)
}
