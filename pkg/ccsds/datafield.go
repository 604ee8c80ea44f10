// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"bytes"
	"encoding/binary"
)

// DataField is the part of a packet that follows the primary header:
// an optional secondary header, the user data and an optional checksum
// trailer.
type DataField struct {
	secondary   SecondaryHeader
	userData    []byte
	checksum    uint16
	hasChecksum bool
}

// SecondaryHeader returns the secondary header, or nil when absent.
func (d DataField) SecondaryHeader() SecondaryHeader {
	return d.secondary
}

// UserData returns a copy of the user payload.
func (d DataField) UserData() []byte {
	return bytes.Clone(d.userData)
}

// Checksum returns the trailer value and whether one is present.
func (d DataField) Checksum() (uint16, bool) {
	return d.checksum, d.hasChecksum
}

// Len returns the encoded size in octets.
func (d DataField) Len() int {
	n := len(d.userData)
	if d.secondary != nil {
		n += d.secondary.Size()
	}
	if d.hasChecksum {
		n += ChecksumSize
	}
	return n
}

// Encode returns the data field octets including the trailer.
func (d DataField) Encode() []byte {
	return d.appendTo(make([]byte, 0, d.Len()), true)
}

func (d DataField) appendTo(buf []byte, trailer bool) []byte {
	if d.secondary != nil {
		buf = append(buf, d.secondary.Encode()...)
	}
	buf = append(buf, d.userData...)
	if trailer && d.hasChecksum {
		buf = binary.BigEndian.AppendUint16(buf, d.checksum)
	}
	return buf
}

func (d DataField) clone() DataField {
	d.userData = bytes.Clone(d.userData)
	if d.userData == nil {
		d.userData = []byte{}
	}
	return d
}

func (d DataField) equal(o DataField) bool {
	return d.secondary == o.secondary &&
		bytes.Equal(d.userData, o.userData) &&
		d.hasChecksum == o.hasChecksum &&
		d.checksum == o.checksum
}
