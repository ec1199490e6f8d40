// Package netframe parses and encodes the proprietary trunking-network
// wire frame that carries P25 DUIDs, LC addressing, and the DFSI voice
// payload between the bridge and the network peer.
package netframe

import "fmt"

// DUID is the 4-bit P25 data unit ID (only the low nibble of byte 22
// is significant on the wire).
type DUID byte

const (
	DUIDHDU   DUID = 0x00
	DUIDTDU   DUID = 0x03
	DUIDLDU1  DUID = 0x05
	DUIDVSELP1 DUID = 0x06
	DUIDVSELP2 DUID = 0x07
	DUIDTDULC DUID = 0x0F
	DUIDLDU2  DUID = 0x0A
	DUIDPDU   DUID = 0x0C
	DUIDTSDU  DUID = 0x07
)

// Control byte bit masks (offset 14).
const (
	CtrlGrantDemand byte = 0x80
	CtrlGrantDenial byte = 0x40
	CtrlSwitchOver  byte = 0x10
	CtrlGrantEncrypt byte = 0x08
	CtrlUnitToUnit  byte = 0x01
)

// FrameType byte values (offset 180).
const FrameTypeHDUValid byte = 0x01

// HeaderLen is the fixed minimum header length before the DFSI payload.
const HeaderLen = 24

// TrailerOffset is the byte offset, within the full frame, of the
// frame-type/algo/key/MI trailer that rides along an LDU1 carrying an
// HDU.
const TrailerOffset = 180

// ControlFlags are the decoded bits of the control byte at offset 14.
type ControlFlags struct {
	GrantDemand  bool
	GrantDenial  bool
	SwitchOver   bool
	GrantEncrypt bool
	UnitToUnit   bool
}

func decodeControlFlags(b byte) ControlFlags {
	return ControlFlags{
		GrantDemand:  b&CtrlGrantDemand != 0,
		GrantDenial:  b&CtrlGrantDenial != 0,
		SwitchOver:   b&CtrlSwitchOver != 0,
		GrantEncrypt: b&CtrlGrantEncrypt != 0,
		UnitToUnit:   b&CtrlUnitToUnit != 0,
	}
}

func (f ControlFlags) encode() byte {
	var b byte
	if f.GrantDemand {
		b |= CtrlGrantDemand
	}
	if f.GrantDenial {
		b |= CtrlGrantDenial
	}
	if f.SwitchOver {
		b |= CtrlSwitchOver
	}
	if f.GrantEncrypt {
		b |= CtrlGrantEncrypt
	}
	if f.UnitToUnit {
		b |= CtrlUnitToUnit
	}
	return b
}

// Frame is a parsed network frame: the fixed header fields plus the
// raw DFSI payload and optional HDU-valid trailer.
type Frame struct {
	LCO     byte
	SrcID   uint32
	DstID   uint32
	Control ControlFlags
	MFID    byte
	LSD1    byte
	LSD2    byte
	DUID    DUID

	// StreamID identifies the transport stream that "owns" this call;
	// it is supplied by the network transport layer, not carried in
	// these header bytes, so callers set it after Parse returns.
	StreamIDValue uint32

	Payload []byte // the DFSI payload, PayloadLen bytes

	HasHDUTrailer bool
	AlgID         byte
	KeyID         uint16
	MI            [9]byte
}

// Parse decodes a network frame from raw bytes received off the wire.
func Parse(buf []byte) (*Frame, error) {
	if len(buf) < HeaderLen {
		return nil, fmt.Errorf("netframe: frame too short: %d bytes", len(buf))
	}
	f := &Frame{
		LCO:     buf[4],
		SrcID:   uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7]),
		DstID:   uint32(buf[8])<<16 | uint32(buf[9])<<8 | uint32(buf[10]),
		Control: decodeControlFlags(buf[14]),
		MFID:    buf[15],
		LSD1:    buf[20],
		LSD2:    buf[21],
		DUID:    DUID(buf[22] & 0x0F),
	}
	payloadLen := int(buf[23])
	if len(buf) < 24+payloadLen {
		return nil, fmt.Errorf("netframe: payload truncated: declared %d, have %d", payloadLen, len(buf)-24)
	}
	f.Payload = buf[24 : 24+payloadLen]

	if len(buf) > TrailerOffset && buf[TrailerOffset] == FrameTypeHDUValid {
		if len(buf) < TrailerOffset+13 {
			return nil, fmt.Errorf("netframe: HDU trailer truncated")
		}
		f.HasHDUTrailer = true
		f.AlgID = buf[TrailerOffset+1]
		f.KeyID = uint16(buf[TrailerOffset+2])<<8 | uint16(buf[TrailerOffset+3])
		copy(f.MI[:], buf[TrailerOffset+4:TrailerOffset+13])
	}
	return f, nil
}

// StreamID returns the transport stream ID owning this frame.
func (f *Frame) StreamID() uint32 { return f.StreamIDValue }

// Encode serialises a frame back to wire bytes. The trailer is only
// emitted when HasHDUTrailer is set, matching the "HDU rides with the
// first LDU1 of a call" convention.
func (f *Frame) Encode() []byte {
	size := HeaderLen + len(f.Payload)
	if f.HasHDUTrailer && size < TrailerOffset+13 {
		size = TrailerOffset + 13
	}
	buf := make([]byte, size)
	buf[4] = f.LCO
	buf[5] = byte(f.SrcID >> 16)
	buf[6] = byte(f.SrcID >> 8)
	buf[7] = byte(f.SrcID)
	buf[8] = byte(f.DstID >> 16)
	buf[9] = byte(f.DstID >> 8)
	buf[10] = byte(f.DstID)
	buf[14] = f.Control.encode()
	buf[15] = f.MFID
	buf[20] = f.LSD1
	buf[21] = f.LSD2
	buf[22] = byte(f.DUID) & 0x0F
	buf[23] = byte(len(f.Payload))
	copy(buf[24:], f.Payload)
	if f.HasHDUTrailer {
		buf[TrailerOffset] = FrameTypeHDUValid
		buf[TrailerOffset+1] = f.AlgID
		buf[TrailerOffset+2] = byte(f.KeyID >> 8)
		buf[TrailerOffset+3] = byte(f.KeyID)
		copy(buf[TrailerOffset+4:TrailerOffset+13], f.MI[:])
	}
	return buf
}
