// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 ExoSpaceLabs

package ccsds

import (
	"fmt"
	"strings"
)

// FormatBinary renders the low bits of value as a binary string
func FormatBinary(value uint64, bits int) string {
	if bits <= 0 {
		return ""
	}
	if bits > 64 {
		bits = 64
	}
	var b strings.Builder
	b.Grow(bits)
	for i := bits - 1; i >= 0; i-- {
		if value>>uint(i)&1 == 1 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// FormatPrimaryHeader formats a primary header field by field
func FormatPrimaryHeader(h PrimaryHeader) string {
	var b strings.Builder
	b.WriteString("Primary Header:\n")
	fmt.Fprintf(&b, "  Version:          %d [%s]\n", h.Version, FormatBinary(uint64(h.Version), versionBits))
	fmt.Fprintf(&b, "  Type:             %s [%s]\n", h.Type, FormatBinary(uint64(h.Type), 1))
	fmt.Fprintf(&b, "  Secondary Header: %t\n", h.SecondaryHeaderFlag)
	fmt.Fprintf(&b, "  APID:             %d (0x%03X)\n", h.APID, h.APID)
	fmt.Fprintf(&b, "  Sequence Flags:   %s [%s]\n", h.SequenceFlags, FormatBinary(uint64(h.SequenceFlags), 2))
	fmt.Fprintf(&b, "  Sequence Count:   %d\n", h.SequenceCount)
	fmt.Fprintf(&b, "  Data Length:      %d (data field %d octets)\n", h.DataLength, h.DataFieldLength())
	return b.String()
}

// FormatSecondaryHeader formats a PUS secondary header, or "none" when nil
func FormatSecondaryHeader(sh SecondaryHeader) string {
	if sh == nil {
		return "Secondary Header: none\n"
	}
	c := sh.Common()

	var b strings.Builder
	fmt.Fprintf(&b, "Secondary Header (%s):\n", sh.Variant())
	fmt.Fprintf(&b, "  Version:          %d\n", c.Version)
	fmt.Fprintf(&b, "  Service:          %d/%d\n", c.ServiceType, c.ServiceSubtype)
	fmt.Fprintf(&b, "  Source ID:        %d\n", c.SourceID)
	switch h := sh.(type) {
	case PusB:
		fmt.Fprintf(&b, "  Event ID:         %d\n", h.EventID)
	case PusC:
		fmt.Fprintf(&b, "  Time Code:        %d\n", h.TimeCode)
	}
	fmt.Fprintf(&b, "  Data Length:      %d\n", sh.UserDataLength())
	return b.String()
}

// FormatDataField formats a data field with a hex dump of its user data
func FormatDataField(d DataField) string {
	var b strings.Builder
	b.WriteString(FormatSecondaryHeader(d.secondary))
	fmt.Fprintf(&b, "User Data (%d octets):\n", len(d.userData))
	b.WriteString(FormatBuffer(d.userData))
	if crc, ok := d.Checksum(); ok {
		fmt.Fprintf(&b, "Checksum:           0x%04X\n", crc)
	}
	return b.String()
}

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s apid=%d seq=%d %s len=%d\n",
		p.timestamp.Format("15:04:05.000"), p.Type(), p.APID(), p.SequenceCount(), p.SequenceFlags(), p.Len())
	b.WriteString(FormatPrimaryHeader(p.primary))
	b.WriteString(FormatDataField(p.data))
	if p.checksum {
		fmt.Fprintf(&b, "Error Control:      %s over %s\n", p.crc.Name, p.coverage)
	}
	return b.String()
}

// FormatPacketLine formats a packet as a single summary line
func FormatPacketLine(p *Packet) string {
	line := fmt.Sprintf("[%s] %s apid=%-4d seq=%-5d %-12s %s len=%d",
		p.timestamp.Format("15:04:05.000"), p.Type(), p.APID(), p.SequenceCount(), p.SequenceFlags(), p.Variant(), p.Len())
	if sh := p.SecondaryHeader(); sh != nil {
		c := sh.Common()
		line += fmt.Sprintf(" svc=%d/%d src=%d", c.ServiceType, c.ServiceSubtype, c.SourceID)
	}
	if crc, ok := p.Checksum(); ok {
		line += fmt.Sprintf(" crc=0x%04X", crc)
	}
	return line
}

// FormatBuffer renders a hex dump with 16 octets per line
func FormatBuffer(data []byte) string {
	if len(data) == 0 {
		return "  (empty)\n"
	}
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		line := data[off:min(off+16, len(data))]
		fmt.Fprintf(&b, "  %04X ", off)
		for i := 0; i < 16; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, " %02X", line[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString("  |")
		for _, c := range line {
			if c >= 0x20 && c < 0x7F {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

// FormatManager lists every packet with a per-APID summary
func FormatManager(m *Manager) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Manager: %d packets, %d APIDs\n", m.Len(), len(m.APIDs()))
	for i, p := range m.All() {
		fmt.Fprintf(&b, "%5d %s\n", i, FormatPacketLine(p))
	}
	for _, apid := range m.APIDs() {
		n := 0
		for range m.ForAPID(apid) {
			n++
		}
		gaps := m.ValidateSequence(apid)
		fmt.Fprintf(&b, "APID %d: %d packets, %d sequence gaps\n", apid, n, len(gaps))
		for _, g := range gaps {
			b.WriteString("  " + FormatSequenceGap(g) + "\n")
		}
	}
	return b.String()
}

// FormatSequenceGap formats a sequence gap report
func FormatSequenceGap(g SequenceGap) string {
	return g.Error()
}
