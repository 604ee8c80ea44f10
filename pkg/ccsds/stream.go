// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Reader splits a byte stream into packets using the primary header
// data length. A packet that fails to decode is still consumed in full,
// so the stream stays aligned on the next packet boundary.
type Reader struct {
	r      io.Reader
	opts   []Option
	buf    []byte
	raw    []byte
	offset int64
}

// NewReader returns a Reader that decodes packets from r with opts.
func NewReader(r io.Reader, opts ...Option) *Reader {
	return &Reader{
		r:    r,
		opts: opts,
		buf:  make([]byte, MaxPacketSize),
	}
}

// Next reads and decodes one packet. It returns io.EOF when the stream
// ends on a packet boundary and a *PacketError with ErrTruncated when it
// ends mid-packet. Other read errors are returned unchanged.
func (r *Reader) Next() (*Packet, error) {
	r.raw = nil

	n, err := io.ReadFull(r.r, r.buf[:PrimaryHeaderSize])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			r.offset += int64(n)
			return nil, &PacketError{Layer: LayerPrimaryHeader, Err: &HeaderError{
				Layer: LayerPrimaryHeader,
				Err:   ErrTruncated,
				Want:  PrimaryHeaderSize,
				Got:   n,
			}}
		}
		return nil, err
	}

	// Header decode cannot fail on 6 octets.
	primary, _ := DecodePrimaryHeader(r.buf[:PrimaryHeaderSize])
	total := primary.PacketLength()

	m, err := io.ReadFull(r.r, r.buf[PrimaryHeaderSize:total])
	if err != nil {
		r.offset += int64(PrimaryHeaderSize + m)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &PacketError{
				Layer:    LayerLength,
				Err:      ErrTruncated,
				Expected: primary.DataFieldLength(),
				Actual:   m,
			}
		}
		return nil, err
	}

	r.offset += int64(total)
	r.raw = r.buf[:total]
	return DecodePacket(r.raw, r.opts...)
}

// Raw returns a copy of the octets behind the last Next call. It is set
// even when decoding failed, and nil when the stream ended mid-packet.
func (r *Reader) Raw() []byte {
	return bytes.Clone(r.raw)
}

// Offset returns the number of octets consumed so far.
func (r *Reader) Offset() int64 {
	return r.offset
}

// DecodeAll decodes a concatenation of packets into a new Manager. It is
// all-or-nothing: the first failure is returned with its packet index.
func DecodeAll(b []byte, opts ...Option) (*Manager, error) {
	m := NewManager()
	r := NewReader(bytes.NewReader(b), opts...)
	for i := 0; ; i++ {
		start := r.Offset()
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return m, nil
		}
		if err != nil {
			return nil, fmt.Errorf("packet %d at offset %d: %w", i, start, err)
		}
		m.packets = append(m.packets, p)
	}
}
