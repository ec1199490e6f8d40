// Package vocoder defines the boundary between the call engine and an
// external IMBE vocoder. Implementing the vocoder itself (typically a
// vendor DSP library or DLL) is out of scope; this package only
// describes the contract the call engine depends on.
package vocoder

// SamplesPerFrame is the number of 16-bit PCM samples one IMBE
// codeword decodes to or one IMBE codeword is encoded from (20 ms at
// 8 kHz).
const SamplesPerFrame = 160

// IMBEBytes is the length of one packed IMBE codeword cell.
const IMBEBytes = 11

// Decoder converts one 88-bit IMBE codeword to 160 PCM samples.
type Decoder interface {
	Decode(imbe [IMBEBytes]byte) (pcm [SamplesPerFrame]int16, err error)
}

// Encoder converts 160 PCM samples to one 88-bit IMBE codeword.
type Encoder interface {
	Encode(pcm [SamplesPerFrame]int16) (imbe [IMBEBytes]byte, err error)
}

// Codec is the full vocoder contract the engine wires against.
type Codec interface {
	Decoder
	Encoder
}

// NullCodec decodes every IMBE codeword to silence and encodes every
// PCM frame to an all-zero codeword. It satisfies Codec so the call
// engine can be wired up and exercised without a real vocoder
// attached; production deployments replace it with a binding to the
// vendor DSP library or process this package deliberately excludes.
type NullCodec struct{}

func (NullCodec) Decode(imbe [IMBEBytes]byte) (pcm [SamplesPerFrame]int16, err error) {
	return pcm, nil
}

func (NullCodec) Encode(pcm [SamplesPerFrame]int16) (imbe [IMBEBytes]byte, err error) {
	return imbe, nil
}
