// Package engine is the concurrency fabric (C5): a network worker, an
// audio worker, a UDP audio worker, and a watchdog, cooperating around
// a single call.Engine under the shared-mutex discipline spec'd for
// the real-time audio and network paths.
package engine

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/p25bridge/pkg/call"
	"github.com/dbehnke/p25bridge/pkg/logger"
	"github.com/dbehnke/p25bridge/pkg/netframe"
	"github.com/dbehnke/p25bridge/pkg/udpaudio"
	"github.com/dbehnke/p25bridge/pkg/vocoder"
)

// NetworkCadence is the yield interval for the network and audio
// workers when there is no pending work.
const NetworkCadence = time.Millisecond

// WatchdogCadence is the tick interval of the stuck-call watchdog.
const WatchdogCadence = 5 * time.Millisecond

// StuckCallMultiplier scales the drop timeout in the watchdog's
// stuck-call threshold, StuckCallMultiplier x drop timeout + 2000 ms;
// past it the watchdog forces a call end regardless of VOX.
const StuckCallMultiplier = 2

// AudioDevice is the boundary to a local real-time PCM device.
type AudioDevice interface {
	// ReadFrame blocks until one 20ms input frame is available.
	ReadFrame(ctx context.Context) ([vocoder.SamplesPerFrame]int16, error)
	// WriteFrame delivers one 20ms output frame to the device.
	WriteFrame([vocoder.SamplesPerFrame]int16) error
	// Restart recovers a device that has stopped responding.
	Restart() error
}

// UDPAudioFormat selects the wire framing used for UDP audio egress.
type UDPAudioFormat int

const (
	UDPAudioRaw UDPAudioFormat = iota
	UDPAudioRTP
	UDPAudioUSRP
)

// Engine wires the call engine to the network connection, the UDP
// audio peer, and (optionally) a local audio device.
type Engine struct {
	log  *logger.Logger
	call *call.Engine

	conn      *net.UDPConn
	udpConn   *net.UDPConn
	udpPeer   *net.UDPAddr
	udpFormat UDPAudioFormat
	device    AudioDevice

	sendQueue udpaudio.SendQueue
	queueMu   sync.Mutex
	txSeq     udpaudio.SequenceState

	rxLastSeq  uint16
	rxHaveLast bool

	// audioMtx guards both jitter rings, mirroring the teacher's
	// single-lock discipline for the real-time audio path: no
	// logging or allocation happens while holding it.
	audioMtx sync.Mutex

	running       atomic.Bool
	killed        atomic.Bool
	lastActivity  atomic.Int64 // unix nanos
	dropTimeoutMs int64
}

// New constructs an engine around an already-configured call.Engine.
func New(log *logger.Logger, c *call.Engine, dropTimeoutMs int) *Engine {
	e := &Engine{log: log, call: c, dropTimeoutMs: int64(dropTimeoutMs)}
	e.lastActivity.Store(time.Now().UnixNano())
	return e
}

// AttachUDPSocket binds the network connection used for trunking
// traffic. The UDP audio peer socket is bound separately by
// AttachUDPAudio.
func (e *Engine) AttachUDPSocket(conn *net.UDPConn) { e.conn = conn }

// AttachUDPAudio binds the UDP audio peer socket, the peer address RX
// call audio is sent to, and the wire format (spec §6 "udpRTPFrames,
// udpUsrp" select among raw/RTP/USRP framing).
func (e *Engine) AttachUDPAudio(conn *net.UDPConn, peer *net.UDPAddr, format UDPAudioFormat) {
	e.udpConn = conn
	e.udpPeer = peer
	e.udpFormat = format
}

// AttachAudioDevice binds the local PCM device, if any.
func (e *Engine) AttachAudioDevice(dev AudioDevice) { e.device = dev }

// Run starts the network, audio, UDP, and watchdog workers and blocks
// until ctx is cancelled or a worker returns a fatal error.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	errChan := make(chan error, 5)

	go func() { errChan <- e.networkLoop(ctx) }()
	go func() { errChan <- e.audioLoop(ctx) }()
	go func() { errChan <- e.udpLoop(ctx) }()
	go func() { errChan <- e.udpAudioRXLoop(ctx) }()
	go func() { errChan <- e.watchdogLoop(ctx) }()

	select {
	case <-ctx.Done():
		e.killed.Store(true)
		return ctx.Err()
	case err := <-errChan:
		e.killed.Store(true)
		return err
	}
}

func (e *Engine) networkLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.conn == nil {
			time.Sleep(NetworkCadence)
			continue
		}
		e.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, _, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			e.log.Error("network read failed", logger.Error(err))
			continue
		}
		f, err := netframe.Parse(buf[:n])
		if err != nil {
			e.log.Warn("dropped malformed frame", logger.Error(err))
			continue
		}
		e.lastActivity.Store(time.Now().UnixNano())
		if perr := e.call.ProcessNetworkFrame(f); perr != nil {
			e.log.Warn("dropped frame", logger.Error(perr))
		}
	}
}

func (e *Engine) audioLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if e.device != nil {
			frame, err := e.device.ReadFrame(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.log.Error("audio device read failed, restarting", logger.Error(err))
				if rerr := e.device.Restart(); rerr != nil {
					panic("engine: audio device restart failed: " + rerr.Error())
				}
				continue
			}
			if err := e.call.EncodePCMFrame(frame); err != nil {
				e.log.Warn("vocoder encode failed", logger.Error(err))
			}
		}

		e.audioMtx.Lock()
		out, ok := e.call.OutputRing.Pop()
		e.audioMtx.Unlock()
		if ok {
			if e.device != nil {
				if werr := e.device.WriteFrame(out); werr != nil {
					e.log.Warn("audio device write failed", logger.Error(werr))
				}
			}
			if e.udpConn != nil {
				e.EnqueueUDPAudio(udpaudio.Request{PCM: pcmToWire(out), DstID: e.call.RXDstID(), SrcID: e.call.RXSrcID()})
			}
		}
		if e.device == nil && !ok {
			time.Sleep(NetworkCadence)
		}
	}
}

// udpLoop drains queued RX audio and writes it to the UDP audio peer,
// wrapped in the configured wire format (spec §6).
func (e *Engine) udpLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.queueMu.Lock()
		req, ok := e.sendQueue.Pop()
		e.queueMu.Unlock()
		if !ok {
			time.Sleep(NetworkCadence)
			continue
		}
		if e.udpConn == nil {
			continue
		}

		var out []byte
		switch e.udpFormat {
		case UDPAudioRTP:
			seq, ts := e.txSeq.Next()
			hdr := udpaudio.RTPHeader{PayloadType: udpaudio.RTPPayloadTypeG711, Sequence: seq, Timestamp: ts, SSRC: req.SrcID}
			out = append(hdr.Encode(), req.PCM...)
		case UDPAudioUSRP:
			seq, _ := e.txSeq.Next()
			hdr := udpaudio.USRPHeader{Sequence: uint32(seq), PTT: true}
			out = append(hdr.Encode(), req.PCM...)
		default:
			out = udpaudio.EncodeRaw(req.PCM, req.DstID, req.SrcID, true)
		}

		var writeErr error
		if e.udpPeer != nil {
			_, writeErr = e.udpConn.WriteToUDP(out, e.udpPeer)
		} else {
			_, writeErr = e.udpConn.Write(out)
		}
		if writeErr != nil {
			e.log.Warn("UDP audio write failed", logger.Error(writeErr))
		}
	}
}

// udpAudioRXLoop reads inbound UDP audio from the peer and drives it
// into the TX superframe pipeline, sequence-checked against the
// configured wire format (spec §6, the RTP out-of-order handling).
func (e *Engine) udpAudioRXLoop(ctx context.Context) error {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if e.udpConn == nil {
			time.Sleep(NetworkCadence)
			continue
		}
		e.udpConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := e.udpConn.Read(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			continue
		}
		pkt := buf[:n]

		var pcm []byte
		switch e.udpFormat {
		case UDPAudioRTP:
			hdr, herr := udpaudio.ParseRTPHeader(pkt)
			if herr != nil {
				e.log.Warn("dropped malformed RTP audio packet", logger.Error(herr))
				continue
			}
			switch udpaudio.CheckOrder(e.rxLastSeq, e.rxHaveLast, hdr.Sequence) {
			case udpaudio.RXLost:
				e.log.Warn("UDP audio packet loss detected", "seq", hdr.Sequence)
			case udpaudio.RXOutOfOrder:
				e.log.Warn("dropped out-of-order UDP audio packet", "seq", hdr.Sequence)
				continue
			}
			e.rxLastSeq = hdr.Sequence
			e.rxHaveLast = true
			pcm = pkt[udpaudio.RTPHeaderLen:]
		case UDPAudioUSRP:
			hdr, herr := udpaudio.ParseUSRPHeader(pkt)
			if herr != nil {
				e.log.Warn("dropped malformed USRP audio packet", logger.Error(herr))
				continue
			}
			if !hdr.PTT {
				continue // end-of-transmission marker, no payload
			}
			pcm = pkt[udpaudio.USRPHeaderLen:]
		default:
			raw, _, _, derr := udpaudio.DecodeRaw(pkt, true)
			if derr != nil {
				e.log.Warn("dropped malformed raw audio packet", logger.Error(derr))
				continue
			}
			pcm = raw
		}

		for _, frame := range wireToPCMFrames(pcm) {
			if err := e.call.EncodePCMFrame(frame); err != nil {
				e.log.Warn("vocoder encode failed", logger.Error(err))
			}
		}
	}
}

// pcmToWire serialises one 20ms PCM frame to big-endian 16-bit samples,
// the wire representation all three UDP audio formats carry as payload.
func pcmToWire(frame [vocoder.SamplesPerFrame]int16) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		out[i*2] = byte(uint16(s) >> 8)
		out[i*2+1] = byte(uint16(s))
	}
	return out
}

// wireToPCMFrames splits a received PCM byte payload into whole 20ms
// frames, discarding any trailing partial frame.
func wireToPCMFrames(pcm []byte) [][vocoder.SamplesPerFrame]int16 {
	frameBytes := vocoder.SamplesPerFrame * 2
	count := len(pcm) / frameBytes
	frames := make([][vocoder.SamplesPerFrame]int16, count)
	for i := 0; i < count; i++ {
		chunk := pcm[i*frameBytes : (i+1)*frameBytes]
		for j := 0; j < vocoder.SamplesPerFrame; j++ {
			frames[i][j] = int16(uint16(chunk[j*2])<<8 | uint16(chunk[j*2+1]))
		}
	}
	return frames
}

func (e *Engine) watchdogLoop(ctx context.Context) error {
	ticker := time.NewTicker(WatchdogCadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if e.dropTimeoutMs <= 0 {
				continue
			}
			last := time.Unix(0, e.lastActivity.Load())
			stuckAfter := time.Duration(e.dropTimeoutMs*StuckCallMultiplier+2000) * time.Millisecond
			if e.call.RXState != call.RXIdle && time.Since(last) > stuckAfter {
				e.log.Warn("terminating stuck call")
				e.call.EndRX()
			}
		}
	}
}

// EnqueueUDPAudio queues a UDP audio send, drained by the UDP worker.
func (e *Engine) EnqueueUDPAudio(req udpaudio.Request) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	e.sendQueue.Push(req)
}
