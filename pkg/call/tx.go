package call

import (
	"github.com/dbehnke/p25bridge/pkg/dfsi"
	"github.com/dbehnke/p25bridge/pkg/fec"
	"github.com/dbehnke/p25bridge/pkg/lc"
	"github.com/dbehnke/p25bridge/pkg/netframe"
	"github.com/dbehnke/p25bridge/pkg/p25crypto"
	"github.com/dbehnke/p25bridge/pkg/vocoder"
)

// StartTX begins a TX call: it is the caller's job to detect VOX/COR
// and invoke this once per call (spec §4.4 TX state machine entry).
func (e *Engine) StartTX(streamID uint32) {
	if e.TXState != TXIdle {
		return
	}
	e.TXState = TXSpeaking
	e.txStreamID = streamID
	e.txN = 0
	e.txLDU1.Reset()
	e.txLDU2.Reset()
	e.log.Info("call start", "dstId", e.cfg.DstID)

	if e.cfg.GrantDemand {
		ctrl := netframe.ControlFlags{GrantDemand: true}
		if e.cfg.TEK.Enable {
			ctrl.GrantEncrypt = true
		}
		e.emit(&netframe.Frame{DUID: netframe.DUIDTDU, Control: ctrl, DstID: e.cfg.DstID})
	}
}

// EncodePCMFrame feeds one 20ms PCM frame into the TX superframe
// pipeline (spec §4.4 "Per 20 ms input frame").
func (e *Engine) EncodePCMFrame(pcm [vocoder.SamplesPerFrame]int16) error {
	if e.TXState == TXIdle {
		return nil
	}
	samples := pcm[:]
	audioGain := gainOrDefault(e.cfg.TXGain)
	applyGainInPlace(samples, audioGain)

	imbe, err := e.encoder.Encode(pcm)
	if err != nil {
		return err
	}

	if e.cfg.TEK.Enable && e.txN == 0 && (e.txKeys == nil || !e.txKeys.HasValidKeystream()) {
		e.txKeys = p25crypto.NewKeystream(e.cfg.TEK.AlgID, e.cfg.TEK.Key)
		mi := [lc.MILen]byte{1, 1, 1, 1, 1, 1, 1, 1, 1}
		_ = e.txKeys.Load(mi)
	}
	if e.txKeys != nil && e.txKeys.HasValidKeystream() {
		e.txKeys.XORCodeword(imbe[:])
	}

	if e.txN <= 8 {
		copy(e.txLDU1.IMBE(e.txN), imbe[:])
	} else {
		copy(e.txLDU2.IMBE(e.txN-9), imbe[:])
	}

	if e.txN == 8 {
		e.emitLDU1()
	}
	if e.txN == 17 {
		e.emitLDU2()
		e.rollMI()
	}

	e.txN = (e.txN + 1) % 18
	return nil
}

func applyGainInPlace(samples []int16, gain float64) {
	for i, s := range samples {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		samples[i] = int16(v)
	}
}

func (e *Engine) buildTXLC() *lc.LC {
	l := &lc.LC{
		LCO:      lc.OpcodeGroup,
		Group:    true,
		Priority: 4,
		DstID:    e.cfg.DstID,
	}
	if e.cfg.TEK.Enable && e.txKeys != nil {
		l.AlgID = e.cfg.TEK.AlgID
		l.KeyID = e.cfg.TEK.KeyID
		l.MI = e.txKeys.MI
	} else {
		l.AlgID = lc.AlgUnencrypted
	}
	return l
}

func (e *Engine) emitLDU1() {
	e.txLC = e.buildTXLC()

	hdu := e.txLC.EncodeHDU()
	if !golaySelfCheck(hdu, len(hdu)*8/6) || !rsSelfCheck(fec.RSHDU, hdu) {
		e.log.Warn("HDU link control failed self-check", "dstId", e.cfg.DstID)
	}

	lcRecord := e.txLC.EncodeLDU1()
	if !rsSelfCheck(fec.RSLDU1, lcRecord) {
		e.log.Warn("LDU1 link control failed self-check", "dstId", e.cfg.DstID)
	}
	nibbles := hammingProtect(lcRecord, ldu1LCSymbols)

	payload := e.packSuperframe(&e.txLDU1, false, nibbles)
	f := &netframe.Frame{
		DUID:          netframe.DUIDLDU1,
		DstID:         e.cfg.DstID,
		Control:       netframe.ControlFlags{SwitchOver: true},
		Payload:       payload,
		HasHDUTrailer: true,
		AlgID:         byte(e.txLC.AlgID),
		KeyID:         e.txLC.KeyID,
		MI:            e.txLC.MI,
	}
	e.emit(f)
}

func (e *Engine) emitLDU2() {
	miRecord := e.txLC.EncodeLDU2()
	if !rsSelfCheck(fec.RSLDU2, miRecord) {
		e.log.Warn("LDU2 link control failed self-check", "dstId", e.cfg.DstID)
	}
	nibbles := hammingProtect(miRecord, ldu2LCSymbols)

	payload := e.packSuperframe(&e.txLDU2, true, nibbles)
	f := &netframe.Frame{
		DUID:    netframe.DUIDLDU2,
		DstID:   e.cfg.DstID,
		Payload: payload,
	}
	e.emit(f)
}

// packSuperframe serialises sf's nine IMBE cells to DFSI wire frames,
// threading the Hamming-protected LC (LDU1) or MI (LDU2) nibble payload
// through voice positions 2-7 via distributeNibbles.
func (e *Engine) packSuperframe(sf *dfsi.Superframe, isLDU2 bool, nibblePayload []byte) []byte {
	slots := distributeNibbles(nibblePayload)
	var out []byte
	var lsd [2]byte
	for n := 0; n < 9; n++ {
		var imbe [dfsi.RawIMBELen]byte
		copy(imbe[:], sf.IMBE(n))
		var nibbles []byte
		if n >= 2 && n <= 7 {
			nibbles = slots[n-2]
		}
		var frame []byte
		var err error
		if isLDU2 {
			frame, err = dfsi.PackLDU2Voice(n, imbe, nibbles, lsd)
		} else {
			frame, err = dfsi.PackLDU1Voice(n, imbe, nibbles, lsd)
		}
		if err != nil {
			continue
		}
		out = append(out, frame...)
	}
	return out
}

func (e *Engine) rollMI() {
	if e.txKeys == nil {
		return
	}
	next := p25crypto.NextMI(e.txKeys.MI)
	_ = e.txKeys.Load(next)
}

func (e *Engine) emit(f *netframe.Frame) {
	if e.NetworkOut != nil {
		e.NetworkOut(f)
	}
}

// EndTX terminates the current TX call, padding to the superframe
// boundary with silence if it ends mid-superframe, then emitting a
// TDU (spec §4.4.6 pad-to-boundary).
func (e *Engine) EndTX() {
	if e.TXState == TXIdle {
		return
	}
	e.TXState = TXDraining
	e.padToBoundary()
	e.emit(&netframe.Frame{DUID: netframe.DUIDTDU, DstID: e.cfg.DstID})
	e.log.Info("call end", "dstId", e.cfg.DstID)
	e.TXState = TXIdle
	e.txStreamID = 0
	e.txN = 0
	e.txKeys = nil
}

func (e *Engine) padToBoundary() {
	for e.txN != 0 {
		null := dfsi.NullIMBE
		if e.cfg.TEK.Enable {
			null = dfsi.EncryptedNullIMBE
		}
		var pcm [vocoder.SamplesPerFrame]int16
		_ = pcm
		if e.txN <= 8 {
			copy(e.txLDU1.IMBE(e.txN), null[:])
		} else {
			copy(e.txLDU2.IMBE(e.txN-9), null[:])
		}
		if e.txN == 8 {
			e.emitLDU1()
		}
		if e.txN == 17 {
			e.emitLDU2()
		}
		e.txN = (e.txN + 1) % 18
	}
}
