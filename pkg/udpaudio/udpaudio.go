// Package udpaudio implements the three UDP audio wire formats (raw,
// RTP, USRP) used to bridge PCM to/from a UDP peer, plus the RTP
// sequence/timestamp bookkeeping for a TX call.
package udpaudio

import (
	"encoding/binary"
	"fmt"
)

// RTPGenericClockRate is the clock used for RTP timestamp advance.
const RTPGenericClockRate = 8000

// RTPTimestampStep is the timestamp advance per 20 ms frame: 160 ticks
// of the 8 kHz RTP clock (8000 ticks/s x 0.02 s).
const RTPTimestampStep = 160

// RTPEndOfCallSeq is the sentinel sequence number that marks the end
// of a call; sequences wrap before reaching it again.
const RTPEndOfCallSeq = 65535

// RTPPayloadTypeG711 is the payload type used for G.711 µ-law audio.
const RTPPayloadTypeG711 = 100

// RTPHeaderLen is the fixed RTP header size (no extensions/CSRCs).
const RTPHeaderLen = 12

// RTPHeader is a minimal RTP header sufficient for one-way G.711 audio.
type RTPHeader struct {
	PayloadType byte
	Sequence    uint16
	Timestamp   uint32
	SSRC        uint32
}

// Encode serialises the RTP header to its 12-byte wire form.
func (h RTPHeader) Encode() []byte {
	buf := make([]byte, RTPHeaderLen)
	buf[0] = 0x80 // version 2, no padding/extension/CSRC
	buf[1] = h.PayloadType & 0x7F
	binary.BigEndian.PutUint16(buf[2:4], h.Sequence)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)
	return buf
}

// ParseRTPHeader decodes a 12-byte RTP header.
func ParseRTPHeader(buf []byte) (RTPHeader, error) {
	if len(buf) < RTPHeaderLen {
		return RTPHeader{}, fmt.Errorf("udpaudio: RTP header too short: %d bytes", len(buf))
	}
	return RTPHeader{
		PayloadType: buf[1] & 0x7F,
		Sequence:    binary.BigEndian.Uint16(buf[2:4]),
		Timestamp:   binary.BigEndian.Uint32(buf[4:8]),
		SSRC:        binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// USRPHeaderLen is the fixed USRP header size.
const USRPHeaderLen = 32

// USRPMagic is the 4-byte ASCII tag beginning every USRP header.
var USRPMagic = [4]byte{'U', 'S', 'R', 'P'}

// USRPHeader is the header carried by USRP-formatted UDP audio.
type USRPHeader struct {
	Sequence uint32
	PTT      bool // byte 15: 1 = voice, 0 = EOT
}

// Encode serialises the USRP header. EOT packets are a bare header
// with PTT=false and no payload following.
func (h USRPHeader) Encode() []byte {
	buf := make([]byte, USRPHeaderLen)
	copy(buf[0:4], USRPMagic[:])
	binary.BigEndian.PutUint32(buf[4:8], h.Sequence)
	if h.PTT {
		buf[15] = 1
	}
	return buf
}

// ParseUSRPHeader decodes a 32-byte USRP header.
func ParseUSRPHeader(buf []byte) (USRPHeader, error) {
	if len(buf) < USRPHeaderLen {
		return USRPHeader{}, fmt.Errorf("udpaudio: USRP header too short: %d bytes", len(buf))
	}
	if buf[0] != USRPMagic[0] || buf[1] != USRPMagic[1] || buf[2] != USRPMagic[2] || buf[3] != USRPMagic[3] {
		return USRPHeader{}, fmt.Errorf("udpaudio: missing USRP magic")
	}
	return USRPHeader{
		Sequence: binary.BigEndian.Uint32(buf[4:8]),
		PTT:      buf[15] != 0,
	}, nil
}

// EncodeRaw builds the raw UDP audio format: 4-byte BE length prefix
// plus PCM, with optional dst/src metadata trailer.
func EncodeRaw(pcm []byte, dst, src uint32, withMetadata bool) []byte {
	size := 4 + len(pcm)
	if withMetadata {
		size += 8
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(pcm)))
	copy(buf[4:], pcm)
	if withMetadata {
		off := 4 + len(pcm)
		binary.BigEndian.PutUint32(buf[off:off+4], dst)
		binary.BigEndian.PutUint32(buf[off+4:off+8], src)
	}
	return buf
}

// DecodeRaw parses the raw UDP audio format.
func DecodeRaw(buf []byte, withMetadata bool) (pcm []byte, dst, src uint32, err error) {
	if len(buf) < 4 {
		return nil, 0, 0, fmt.Errorf("udpaudio: raw packet too short")
	}
	n := int(binary.BigEndian.Uint32(buf[0:4]))
	if len(buf) < 4+n {
		return nil, 0, 0, fmt.Errorf("udpaudio: raw packet declares %d bytes PCM, have %d", n, len(buf)-4)
	}
	pcm = buf[4 : 4+n]
	if withMetadata {
		off := 4 + n
		if len(buf) < off+8 {
			return nil, 0, 0, fmt.Errorf("udpaudio: raw packet metadata truncated")
		}
		dst = binary.BigEndian.Uint32(buf[off : off+4])
		src = binary.BigEndian.Uint32(buf[off+4 : off+8])
	}
	return pcm, dst, src, nil
}

// SequenceState tracks a TX call's RTP sequence number and timestamp.
type SequenceState struct {
	Seq       uint16
	Timestamp uint32
	started   bool
}

// Next advances the sequence and timestamp by one 20 ms frame and
// returns the values to stamp on the outgoing packet. Wraps at
// RTPEndOfCallSeq, which is reserved as the end-of-call sentinel and
// skipped over rather than emitted mid-call.
func (s *SequenceState) Next() (seq uint16, timestamp uint32) {
	if !s.started {
		s.started = true
		return s.Seq, s.Timestamp
	}
	s.Seq++
	if s.Seq == RTPEndOfCallSeq {
		s.Seq = 0
	}
	s.Timestamp += RTPTimestampStep
	return s.Seq, s.Timestamp
}

// Reset clears sequence state for a new call.
func (s *SequenceState) Reset() {
	*s = SequenceState{}
}

// RXOrderResult classifies an inbound RTP sequence number relative to
// the last one seen.
type RXOrderResult int

const (
	RXInOrder RXOrderResult = iota
	RXLost                  // a gap: seq > lastSeq+1
	RXOutOfOrder            // seq <= lastSeq (a duplicate or reorder)
)

// CheckOrder classifies seq against the last received sequence number,
// with 16-bit wraparound. The original comparison compared the
// sequence number with itself and so never flagged a reorder; here the
// comparison is done on the signed 16-bit delta, so duplicates and
// reorders are flagged out-of-order while a legitimate wrap around
// RTPEndOfCallSeq is still recognized as in-order or lost.
func CheckOrder(lastSeq uint16, haveLast bool, seq uint16) RXOrderResult {
	if !haveLast {
		return RXInOrder
	}
	delta := int16(seq - lastSeq)
	switch {
	case delta == 1:
		return RXInOrder
	case delta > 1:
		return RXLost
	default:
		return RXOutOfOrder
	}
}

// Request is a queued UDP audio send, drained by the UDP worker.
type Request struct {
	PCM   []byte // raw or µ-law bytes, per configuration
	RTP   *RTPHeader
	USRP  *USRPHeader
	DstID uint32
	SrcID uint32
}

// SendQueue is a simple FIFO of pending UDP audio requests.
type SendQueue struct {
	items []Request
}

// Push enqueues a request.
func (q *SendQueue) Push(r Request) {
	q.items = append(q.items, r)
}

// Pop dequeues the oldest request. ok is false when the queue is empty.
func (q *SendQueue) Pop() (Request, bool) {
	if len(q.items) == 0 {
		return Request{}, false
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r, true
}

// Len reports the number of queued requests.
func (q *SendQueue) Len() int { return len(q.items) }
