package call

import (
	"github.com/dbehnke/p25bridge/pkg/fec"
)

// nibblePositionCap is the byte capacity of one DFSI voice position's
// trailing nibble slot at positions 2-7 of a superframe (frame length
// minus the 1-byte tag and 11-byte IMBE cell).
const nibblePositionCap = 5

// ldu1LCSymbols and ldu2LCSymbols are the LDU1/LDU2 LC records expressed
// as 6-bit symbols (9 and 12 bytes respectively, evenly divisible by 6
// bits with no padding).
const (
	ldu1LCSymbols = 12
	ldu2LCSymbols = 16
)

// bitWriter packs values MSB-first into a growable byte buffer.
type bitWriter struct {
	buf  []byte
	bits int
}

func (w *bitWriter) writeBits(v uint32, width int) {
	for i := width - 1; i >= 0; i-- {
		byteIdx := w.bits / 8
		for byteIdx >= len(w.buf) {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 != 0 {
			w.buf[byteIdx] |= 1 << uint(7-w.bits%8)
		}
		w.bits++
	}
}

// bitReader unpacks MSB-first values from a byte buffer; reads past the
// end of buf yield zero bits rather than panicking, since nibble slots
// are always zero-padded out to their fixed capacity.
type bitReader struct {
	buf  []byte
	bits int
}

func (r *bitReader) readBits(width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		byteIdx := r.bits / 8
		var bit uint32
		if byteIdx < len(r.buf) {
			bit = uint32(r.buf[byteIdx]>>uint(7-r.bits%8)) & 1
		}
		v = v<<1 | bit
		r.bits++
	}
	return v
}

// bytesToSymbols splits record into numSymbols 6-bit big-endian symbols.
func bytesToSymbols(record []byte, numSymbols int) []byte {
	r := bitReader{buf: record}
	out := make([]byte, numSymbols)
	for i := range out {
		out[i] = byte(r.readBits(6))
	}
	return out
}

// symbolsToBytes repacks 6-bit symbols into a numBytes-byte buffer.
func symbolsToBytes(symbols []byte, numBytes int) []byte {
	w := bitWriter{}
	for _, s := range symbols {
		w.writeBits(uint32(s&0x3F), 6)
	}
	out := w.buf
	for len(out) < numBytes {
		out = append(out, 0)
	}
	return out[:numBytes]
}

// hammingProtect Hamming-encodes each 6-bit symbol of record and packs
// the 10-bit codewords MSB-first, producing the "Hamming-protected LC/MI
// nibble" wire payload carried at DFSI voice positions 2-7.
func hammingProtect(record []byte, numSymbols int) []byte {
	w := bitWriter{}
	for _, s := range bytesToSymbols(record, numSymbols) {
		w.writeBits(uint32(fec.HammingEncode(s)), 10)
	}
	return w.buf
}

// hammingRecover reverses hammingProtect. ok is false if any codeword
// carried more than the single bit error Hamming(10,6) can correct.
func hammingRecover(nibbles []byte, numSymbols, recordLen int) (record []byte, ok bool) {
	r := bitReader{buf: nibbles}
	symbols := make([]byte, numSymbols)
	ok = true
	for i := range symbols {
		data, good := fec.HammingDecode(uint16(r.readBits(10)))
		if !good {
			ok = false
		}
		symbols[i] = data
	}
	return symbolsToBytes(symbols, recordLen), ok
}

// distributeNibbles slices a Hamming-protected nibble payload across the
// six DFSI voice positions (2-7) that carry it, zero-padding the unused
// tail of the last slot out to the fixed 5-byte-per-position capacity.
func distributeNibbles(payload []byte) [6][]byte {
	var slots [6][]byte
	for i := 0; i < 6; i++ {
		slot := make([]byte, nibblePositionCap)
		start := i * nibblePositionCap
		if start < len(payload) {
			end := start + nibblePositionCap
			if end > len(payload) {
				end = len(payload)
			}
			copy(slot, payload[start:end])
		}
		slots[i] = slot
	}
	return slots
}

// concatNibbleSlots reassembles the six per-position nibble slices (as
// handed back by dfsi.UnpackVoice for positions 2-7) into one contiguous
// payload for hammingRecover.
func concatNibbleSlots(slots [6][]byte) []byte {
	out := make([]byte, 0, 6*nibblePositionCap)
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

// rsSelfCheck round-trips a record through rs (message split into 6-bit
// RS symbols) as a construction integrity check: Encode immediately
// followed by Decode must recover the same symbols, since no channel
// errors separate the two calls.
func rsSelfCheck(rs *fec.ReedSolomon, record []byte) bool {
	symbols := bytesToSymbols(record, rs.K)
	codeword, err := rs.Encode(symbols)
	if err != nil {
		return false
	}
	msg, ok := rs.Decode(codeword)
	if !ok || len(msg) != len(symbols) {
		return false
	}
	for i := range msg {
		if msg[i] != symbols[i] {
			return false
		}
	}
	return true
}

// golaySelfCheck is the HDU-specific counterpart of rsSelfCheck: it
// exercises Golay(18,6) the same way, one round trip per 6-bit symbol.
func golaySelfCheck(record []byte, numSymbols int) bool {
	for _, s := range bytesToSymbols(record, numSymbols) {
		data, ok := fec.GolayDecode(fec.GolayEncode(s))
		if !ok || data != s {
			return false
		}
	}
	return true
}
