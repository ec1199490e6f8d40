package fec

// P25 Reed-Solomon shapes, built once and reused across every frame:
// constructing the generator polynomial is not free, and none of these
// codes carry per-call state.
var (
	// RSHDU protects the HDU link control (header with the message
	// indicator and algorithm/key IDs).
	RSHDU = NewReedSolomon(36, 20)

	// RSLDU1 protects the LDU1 link control.
	RSLDU1 = NewReedSolomon(24, 12)

	// RSLDU2 protects the LDU2 link control.
	RSLDU2 = NewReedSolomon(24, 16)
)
