// Package call implements the P25 call engine: the RX and TX state
// machines that drive a call from network frame arrival through
// vocoder decode/encode to audio egress/ingress and back.
package call

import (
	"fmt"
	"time"

	"github.com/dbehnke/p25bridge/pkg/audio"
	"github.com/dbehnke/p25bridge/pkg/dfsi"
	"github.com/dbehnke/p25bridge/pkg/fec"
	"github.com/dbehnke/p25bridge/pkg/lc"
	"github.com/dbehnke/p25bridge/pkg/netframe"
	"github.com/dbehnke/p25bridge/pkg/p25crypto"
	"github.com/dbehnke/p25bridge/pkg/vocoder"
)

// RXState is the receive-direction call state.
type RXState int

const (
	RXIdle RXState = iota
	RXActiveClear
	RXActiveEncrypted
	RXIgnored
)

func (s RXState) String() string {
	switch s {
	case RXIdle:
		return "idle"
	case RXActiveClear:
		return "active-clear"
	case RXActiveEncrypted:
		return "active-encrypted"
	case RXIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// TXState is the transmit-direction call state.
type TXState int

const (
	TXIdle TXState = iota
	TXSpeaking
	TXDraining
)

// TEKConfig carries the locally configured session key, its algorithm
// and key ID, used to decide whether an inbound call can be decrypted.
type TEKConfig struct {
	Enable bool
	AlgID  lc.Algorithm
	KeyID  uint16
	Key    []byte
}

// Logger is the narrow logging surface the call engine depends on; the
// ambient *logger.Logger satisfies it through LoggerAdapter.
type Logger interface {
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// Config holds the per-call tunables the engine needs (a subset of
// the full bridge configuration).
type Config struct {
	DstID              uint32
	DropTimeMs         int
	GrantDemand        bool
	PreambleEnable     bool
	PreambleFreqHz     float64
	PreambleLength     int
	RXGain             float64
	TXGain             float64
	TEK                TEKConfig
}

// Engine is one direction-pair (RX+TX) of P25 call state for a single
// logical peer.
type Engine struct {
	cfg     Config
	log     Logger
	decoder vocoder.Decoder
	encoder vocoder.Encoder

	// RX side
	RXState    RXState
	rxStreamID uint32
	rxLC       *lc.LC
	rxKeys     *p25crypto.Keystream
	ignoreCall bool
	rxStart    time.Time
	rxLDU1     dfsi.Superframe
	rxLDU2     dfsi.Superframe
	dropTimer  *time.Timer

	OutputRing audio.Ring

	// TX side
	TXState    TXState
	txStreamID uint32
	txN        int
	txLDU1     dfsi.Superframe
	txLDU2     dfsi.Superframe
	txKeys     *p25crypto.Keystream
	txLC       *lc.LC
	txStart    time.Time

	InputRing audio.Ring

	// NetworkOut receives encoded frames ready for the wire.
	NetworkOut func(*netframe.Frame)

	// RX call lifecycle hooks, for dashboards, the event bus, and
	// call-detail-record storage; all three are optional.
	OnCallStart   func(srcID, dstID uint32, encrypted bool)
	OnCallEnd     func(srcID, dstID uint32, durationSec float64)
	OnCallIgnored func(srcID, dstID uint32, reason string)

	rxSrcID uint32
	rxDstID uint32
}

// NewEngine constructs a call engine for one peer.
func NewEngine(cfg Config, log Logger, codec vocoder.Codec) *Engine {
	return &Engine{cfg: cfg, log: log, decoder: codec, encoder: codec}
}

// dropDuration is the configured drop timeout, forced to 360ms when
// UDP audio forces a full superframe of tolerance; callers needing
// that behavior set cfg.DropTimeMs accordingly before constructing
// the engine.
func (e *Engine) dropDuration() time.Duration {
	ms := e.cfg.DropTimeMs
	if ms <= 0 {
		ms = 180
	}
	return time.Duration(ms) * time.Millisecond
}

// ProcessNetworkFrame runs one inbound frame through the RX state
// machine (spec §4.4 RX state machine, steps 1-12).
func (e *Engine) ProcessNetworkFrame(f *netframe.Frame) error {
	switch f.DUID {
	case netframe.DUIDHDU, netframe.DUIDTSDU, netframe.DUIDPDU:
		return nil // silently dropped at the boundary
	}

	canonicalLCO := lc.Opcode(f.LCO)
	nonStandardMFID := f.MFID != 0x00 && f.MFID != 0x90
	if nonStandardMFID {
		canonicalLCO = lc.OpcodeGroup
	}
	if canonicalLCO == lc.OpcodeGroupUpdate || canonicalLCO == lc.OpcodeRFSSStatusBcast {
		canonicalLCO = lc.OpcodeGroup
	}

	if f.SrcID == 0 {
		return nil // policy violation: drop, no state change
	}
	if f.DstID != e.cfg.DstID {
		return nil
	}

	isTerminator := f.DUID == netframe.DUIDTDU || f.DUID == netframe.DUIDTDULC
	if f.StreamID() != e.rxStreamID && !isTerminator {
		e.rxCallStart(f)
	}

	if isTerminator {
		if f.Control.GrantDemand {
			return nil // not a real end, just a repeated grant demand
		}
		e.rxCallEnd()
		return nil
	}

	if f.DUID == netframe.DUIDLDU2 {
		e.reevaluateIgnoreFromLDU2(f)
	}

	if e.ignoreCall {
		return nil
	}

	switch f.DUID {
	case netframe.DUIDLDU1:
		return e.decodeLDU1(f)
	case netframe.DUIDLDU2:
		return e.decodeLDU2(f)
	}
	return nil
}

func (e *Engine) rxCallStart(f *netframe.Frame) {
	e.rxStreamID = f.StreamID()
	e.rxStart = time.Now()
	e.rxSrcID = f.SrcID
	e.rxDstID = f.DstID
	e.ignoreCall = false
	e.rxLDU1.Reset()
	e.rxLDU2.Reset()

	if f.HasHDUTrailer {
		hdu := &lc.LC{AlgID: lc.Algorithm(f.AlgID), KeyID: f.KeyID, MI: f.MI, DstID: f.DstID}
		record := hdu.EncodeHDU()
		if !golaySelfCheck(record, len(record)*8/6) || !rsSelfCheck(fec.RSHDU, record) {
			e.log.Warn("HDU link control failed self-check", "srcId", f.SrcID, "dstId", f.DstID)
		}
		decoded, err := lc.DecodeHDU(record)
		if err != nil {
			e.log.Warn("HDU link control decode failed", "error", err.Error())
			decoded = hdu
		}
		e.rxLC = decoded

		algID := decoded.AlgID
		tek := e.cfg.TEK
		matchesTEK := tek.Enable && algID == tek.AlgID && decoded.KeyID == tek.KeyID
		if algID != lc.AlgUnencrypted && !matchesTEK {
			e.ignoreCall = true
			e.log.Warn("call ignored: algorithm/key mismatch", "srcId", f.SrcID, "dstId", f.DstID)
			e.RXState = RXIgnored
			if e.OnCallIgnored != nil {
				e.OnCallIgnored(f.SrcID, f.DstID, "algorithm/key mismatch")
			}
			return
		}
		e.rxKeys = p25crypto.NewKeystream(algID, tek.Key)
		if algID != lc.AlgUnencrypted {
			_ = e.rxKeys.Load(decoded.MI)
			e.RXState = RXActiveEncrypted
		} else {
			e.RXState = RXActiveClear
		}
	} else {
		e.RXState = RXActiveClear
	}

	e.log.Info("call start", "srcId", f.SrcID, "dstId", f.DstID)
	if e.OnCallStart != nil {
		e.OnCallStart(f.SrcID, f.DstID, e.RXState == RXActiveEncrypted)
	}
	if e.cfg.PreambleEnable {
		e.pushPreambleTone()
	}
	e.resetDropTimer()
}

func (e *Engine) pushPreambleTone() {
	n := e.cfg.PreambleLength
	if n <= 0 {
		n = audio.SamplesPerFrame
	}
	samples := make([]int16, n)
	audio.GenerateTone(e.cfg.PreambleFreqHz, 8000, samples)
	for i := 0; i+audio.SamplesPerFrame <= len(samples); i += audio.SamplesPerFrame {
		var frame [audio.SamplesPerFrame]int16
		copy(frame[:], samples[i:i+audio.SamplesPerFrame])
		e.OutputRing.Push(frame)
	}
}

func (e *Engine) rxCallEnd() {
	if e.RXState == RXIdle {
		return
	}
	duration := time.Since(e.rxStart).Seconds()
	e.log.Info("call end", "durationSec", duration)
	if e.OnCallEnd != nil {
		e.OnCallEnd(e.rxSrcID, e.rxDstID, duration)
	}
	e.RXState = RXIdle
	e.rxStreamID = 0
	e.rxLC = nil
	e.ignoreCall = false
	if e.rxKeys != nil {
		e.rxKeys.Clear()
	}
	if e.dropTimer != nil {
		e.dropTimer.Stop()
	}
}

// EndRX forcibly terminates a stuck RX call outside the normal
// TDU/drop-timer path. Used by the stuck-call watchdog when no
// network activity has arrived for StuckCallMultiplier x the
// configured drop timeout plus 2000 ms despite a non-idle RX state.
func (e *Engine) EndRX() {
	if e.RXState == RXIdle {
		return
	}
	e.log.Warn("forcing stuck call end", "dstId", e.cfg.DstID)
	e.rxCallEnd()
}

func (e *Engine) reevaluateIgnoreFromLDU2(f *netframe.Frame) {
	if !e.cfg.TEK.Enable || len(f.Payload) < 91 {
		return
	}
	algID := lc.Algorithm(f.Payload[88])
	keyID := uint16(f.Payload[89])<<8 | uint16(f.Payload[90])
	tek := e.cfg.TEK

	if algID == lc.AlgUnencrypted || (algID == tek.AlgID && keyID == tek.KeyID) {
		e.ignoreCall = false
		return
	}
	if e.ignoreCall {
		return
	}
	duration := time.Since(e.rxStart).Seconds()
	e.log.Warn("call end (T)", "durationSec", duration)
	e.ignoreCall = true
	e.RXState = RXIgnored
	if e.OnCallIgnored != nil {
		e.OnCallIgnored(f.SrcID, f.DstID, "algorithm/key mismatch mid-call")
	}
}

func (e *Engine) decodeLDU1(f *netframe.Frame) error {
	expected := dfsi.ExpectedTags(false)
	lengths := dfsi.FrameLengths()
	var slots [6][]byte
	pos := 0
	for n := 0; n < 9; n++ {
		length := lengths[n]
		if pos+length > len(f.Payload) {
			return fmt.Errorf("call: LDU1 payload truncated at voice position %d", n)
		}
		chunk := f.Payload[pos : pos+length]
		if chunk[0] != expected[n] {
			return fmt.Errorf("call: LDU1 voice position %d has wrong DFSI tag 0x%02X", n, chunk[0])
		}
		imbe, nibbles, _, err := dfsi.UnpackVoice(n, chunk)
		if err != nil {
			return err
		}
		copy(e.rxLDU1.IMBE(n), imbe[:])
		if n >= 2 && n <= 7 {
			slots[n-2] = nibbles
		}
		pos += length
	}

	record, recOK := hammingRecover(concatNibbleSlots(slots), ldu1LCSymbols, 9)
	if decoded, err := lc.DecodeLDU1(record); err == nil {
		if !recOK {
			e.log.Warn("LDU1 link control had uncorrectable nibble errors", "srcId", f.SrcID)
		}
		e.rxLC = decoded
	}

	e.decodeSuperframeToAudio(&e.rxLDU1, f.SrcID, f.DstID)
	e.resetDropTimer()
	return nil
}

func (e *Engine) decodeLDU2(f *netframe.Frame) error {
	expected := dfsi.ExpectedTags(true)
	lengths := dfsi.FrameLengths()
	var slots [6][]byte
	pos := 0
	for n := 0; n < 9; n++ {
		length := lengths[n]
		if pos+length > len(f.Payload) {
			return fmt.Errorf("call: LDU2 payload truncated at voice position %d", n)
		}
		chunk := f.Payload[pos : pos+length]
		if chunk[0] != expected[n] {
			return fmt.Errorf("call: LDU2 voice position %d has wrong DFSI tag 0x%02X", n, chunk[0])
		}
		imbe, nibbles, _, err := dfsi.UnpackVoice(n, chunk)
		if err != nil {
			return err
		}
		copy(e.rxLDU2.IMBE(n), imbe[:])
		if n >= 2 && n <= 7 {
			slots[n-2] = nibbles
		}
		pos += length
	}

	record, recOK := hammingRecover(concatNibbleSlots(slots), ldu2LCSymbols, 12)
	if decoded, err := lc.DecodeLDU2(record); err == nil {
		if !recOK {
			e.log.Warn("LDU2 link control had uncorrectable nibble errors", "srcId", f.SrcID)
		}
		e.rxLC = decoded
		if e.rxKeys != nil && decoded.AlgID != lc.AlgUnencrypted {
			_ = e.rxKeys.Load(decoded.MI)
		}
	}

	e.decodeSuperframeToAudio(&e.rxLDU2, f.SrcID, f.DstID)
	e.resetDropTimer()
	return nil
}

func (e *Engine) decodeSuperframeToAudio(sf *dfsi.Superframe, srcID, dstID uint32) {
	for n := 0; n < 9; n++ {
		cell := sf.IMBE(n)
		var imbe [vocoder.IMBEBytes]byte
		copy(imbe[:], cell)
		if e.rxKeys != nil && e.rxKeys.HasValidKeystream() {
			e.rxKeys.XORCodeword(imbe[:])
		}
		pcm, err := e.decoder.Decode(imbe)
		if err != nil {
			e.log.Warn("vocoder decode failed", "error", err.Error())
			continue
		}
		samples := pcm[:]
		audio.ApplyGain(samples, gainOrDefault(e.cfg.RXGain))
		e.OutputRing.Push(pcm)
	}
}

// RXSrcID returns the source unit ID of the call currently (or most
// recently) active on RX, for callers that need to stamp outgoing UDP
// audio with the originating ID.
func (e *Engine) RXSrcID() uint32 { return e.rxSrcID }

// RXDstID returns the destination talkgroup/unit ID of the call
// currently (or most recently) active on RX.
func (e *Engine) RXDstID() uint32 { return e.rxDstID }

func gainOrDefault(g float64) float64 {
	if g == 0 {
		return 1.0
	}
	return g
}

func (e *Engine) resetDropTimer() {
	if e.dropTimer != nil {
		e.dropTimer.Stop()
	}
	e.dropTimer = time.AfterFunc(e.dropDuration(), func() {
		e.rxCallEnd()
	})
}
