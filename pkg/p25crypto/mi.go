package p25crypto

import "github.com/dbehnke/p25bridge/pkg/lc"

// miTaps are the feedback tap positions (bit indices, 0 = LSB of the
// 64-bit shift register) of the P25 message-indicator advance LFSR.
var miTaps = []uint{0, 1, 3, 4, 63}

const miClocks = 64

// NextMI advances a message indicator to the value the transmitter
// places in the following LDU2 LC, by clocking the documented 64-bit
// MI-advance LFSR miClocks times. Deterministic: the same MI always
// advances to the same next MI. The 9th (high) MI byte folds into the
// register via XOR so it participates in every clock despite the
// register itself holding only 64 bits.
func NextMI(mi [lc.MILen]byte) [lc.MILen]byte {
	reg := miToRegister(mi)
	for i := 0; i < miClocks; i++ {
		var fb uint64
		for _, tap := range miTaps {
			fb ^= (reg >> tap) & 1
		}
		reg = (reg >> 1) | (fb << 63)
	}
	return registerToMI(reg)
}

func miToRegister(mi [lc.MILen]byte) uint64 {
	var low uint64
	for i := 1; i < lc.MILen; i++ {
		low = low<<8 | uint64(mi[i])
	}
	reg := low
	reg ^= uint64(mi[0]) << 56
	return reg
}

func registerToMI(reg uint64) [lc.MILen]byte {
	var mi [lc.MILen]byte
	mi[0] = byte(reg >> 56)
	for i := lc.MILen - 1; i >= 1; i-- {
		mi[i] = byte(reg)
		reg >>= 8
	}
	return mi
}
