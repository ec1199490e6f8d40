package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dbehnke/p25bridge/pkg/call"
	"github.com/dbehnke/p25bridge/pkg/cdr"
	"github.com/dbehnke/p25bridge/pkg/config"
	"github.com/dbehnke/p25bridge/pkg/engine"
	"github.com/dbehnke/p25bridge/pkg/eventbus"
	"github.com/dbehnke/p25bridge/pkg/lc"
	"github.com/dbehnke/p25bridge/pkg/logger"
	"github.com/dbehnke/p25bridge/pkg/metrics"
	"github.com/dbehnke/p25bridge/pkg/monitor"
	"github.com/dbehnke/p25bridge/pkg/vocoder"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("p25bridge %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		os.Exit(0)
	}

	log := logger.New(logger.Config{Level: "info", Format: "text"})
	log.Info("starting p25bridge",
		logger.String("version", version),
		logger.String("commit", gitCommit),
		logger.String("build_time", buildTime))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("failed to load configuration", logger.Error(err))
		os.Exit(1)
	}

	if *validateOnly {
		log.Info("configuration is valid")
		os.Exit(0)
	}

	log.Info("configuration loaded", logger.String("config_file", *configFile))
	log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	tek, err := buildTEKConfig(cfg.TEK)
	if err != nil {
		log.Error("invalid TEK configuration", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	var store *cdr.DB
	var repo *cdr.Repository
	if cfg.CDR.Enabled {
		store, err = cdr.NewDB(cdr.Config{Path: cfg.CDR.DSN}, log.WithComponent("cdr"))
		if err != nil {
			log.Error("failed to open call-detail-record store", logger.Error(err))
			os.Exit(1)
		}
		defer store.Close()
		repo = cdr.NewRepository(store.GetDB())
		log.Info("call-detail-record store ready", logger.String("dsn", cfg.CDR.DSN))
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		promCfg := metrics.PrometheusConfig{
			Enabled: cfg.Metrics.Prometheus.Enabled,
			Port:    cfg.Metrics.Prometheus.Port,
			Path:    cfg.Metrics.Prometheus.Path,
		}
		metricsServer := metrics.NewPrometheusServer(promCfg, registry, log.WithComponent("metrics"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("prometheus metrics server started", logger.Int("port", cfg.Metrics.Prometheus.Port))
	}

	var publisher *eventbus.Publisher
	if cfg.MQTT.Enabled {
		publisher = eventbus.New(eventbus.Config{
			Enabled:     cfg.MQTT.Enabled,
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
			Retained:    cfg.MQTT.Retained,
		}, log.WithComponent("eventbus"))
		if err := publisher.Start(); err != nil {
			log.Error("failed to connect to MQTT broker", logger.Error(err))
		} else {
			log.Info("event bus connected", logger.String("broker", cfg.MQTT.Broker))
		}
		defer publisher.Stop()
	}

	monitorServer := monitor.NewServer(cfg.Web, log.WithComponent("monitor"))
	hub := monitorServer.Hub()

	callEngine := call.NewEngine(call.Config{
		DstID:          cfg.Peer.DstID,
		DropTimeMs:     effectiveDropTimeMs(cfg),
		GrantDemand:    cfg.Audio.GrantDemand,
		PreambleEnable: cfg.Preamble.Enable,
		PreambleFreqHz: cfg.Preamble.FreqHz,
		PreambleLength: cfg.Preamble.Length,
		RXGain:         cfg.Audio.RXGain,
		TXGain:         cfg.Audio.TXGain,
		TEK:            tek,
	}, call.NewLoggerAdapter(log.WithComponent("call")), vocoder.NullCodec{})

	monitorServer = monitorServer.WithEngine(callEngine)

	wireLifecycleCallbacks(callEngine, hub, publisher, repo, collector)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := monitorServer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("monitor server error", logger.Error(err))
		}
	}()
	if cfg.Web.Enabled {
		log.Info("monitor dashboard started", logger.Int("port", cfg.Web.Port))
	}

	eng := engine.New(log.WithComponent("engine"), callEngine, effectiveDropTimeMs(cfg))

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Peer.ListenPort})
	if err != nil {
		log.Error("failed to bind peer socket", logger.Error(err))
		os.Exit(1)
	}
	defer conn.Close()
	eng.AttachUDPSocket(conn)

	if cfg.UDPAudio.Enable {
		udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.UDPAudio.ListenPort})
		if err != nil {
			log.Error("failed to bind UDP audio socket", logger.Error(err))
			os.Exit(1)
		}
		defer udpConn.Close()
		peerAddr := &net.UDPAddr{IP: net.ParseIP(cfg.UDPAudio.TargetIP), Port: cfg.UDPAudio.TargetPort}
		eng.AttachUDPAudio(udpConn, peerAddr, udpAudioFormat(cfg.UDPAudio))
	}

	log.Info("p25bridge initialized", logger.String("server_name", cfg.Server.Name))

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(ctx); err != nil && err != context.Canceled {
			log.Error("engine stopped with error", logger.Error(err))
		}
	}()

	sig := <-sigChan
	log.Info("received shutdown signal", logger.String("signal", sig.String()))
	cancel()
	wg.Wait()
	log.Info("p25bridge stopped")
}

// effectiveDropTimeMs forces the 360ms tolerance spec'd for UDP audio
// framing regardless of the configured drop timeout.
func effectiveDropTimeMs(cfg *config.Config) int {
	if cfg.UDPAudio.Enable {
		return 360
	}
	return cfg.Audio.DropTimeMs
}

// udpAudioFormat picks the wire framing from the mutually-exclusive
// udp_audio.usrp/rtp_frames flags config.validate already enforced.
func udpAudioFormat(cfg config.UDPAudioConfig) engine.UDPAudioFormat {
	switch {
	case cfg.USRP:
		return engine.UDPAudioUSRP
	case cfg.RTPFrames:
		return engine.UDPAudioRTP
	default:
		return engine.UDPAudioRaw
	}
}

func buildTEKConfig(tek config.TEKConfig) (call.TEKConfig, error) {
	if !tek.Enable {
		return call.TEKConfig{}, nil
	}
	var algID lc.Algorithm
	switch strings.ToLower(tek.Algo) {
	case "aes":
		algID = lc.AlgAES256
	case "arc4":
		algID = lc.AlgARC4
	case "des":
		algID = lc.AlgDES
	default:
		return call.TEKConfig{}, fmt.Errorf("unsupported tek algorithm %q", tek.Algo)
	}
	key, err := hex.DecodeString(tek.Key)
	if err != nil {
		return call.TEKConfig{}, fmt.Errorf("invalid tek key: %w", err)
	}
	return call.TEKConfig{Enable: true, AlgID: algID, KeyID: tek.KeyID, Key: key}, nil
}

// wireLifecycleCallbacks hooks the call engine's RX lifecycle so every
// call start/end/ignore is reflected to the monitor dashboard, the
// event bus, and the call-detail-record store. The call engine itself
// stays ignorant of all three; it only knows the RX state machine.
func wireLifecycleCallbacks(e *call.Engine, hub *monitor.Hub, pub *eventbus.Publisher, repo *cdr.Repository, collector *metrics.Collector) {
	e.OnCallStart = func(srcID, dstID uint32, encrypted bool) {
		hub.BroadcastCallStart(srcID, dstID, encrypted)
		collector.CallStarted()
		if pub != nil {
			_ = pub.PublishCallStart(eventbus.CallStartEvent{
				SrcID: srcID, DstID: dstID, Encrypted: encrypted, Timestamp: time.Now(),
			})
		}
	}
	e.OnCallEnd = func(srcID, dstID uint32, durationSec float64) {
		hub.BroadcastCallEnd(srcID, dstID, durationSec)
		collector.CallEnded(durationSec)
		if pub != nil {
			_ = pub.PublishCallEnd(eventbus.CallEndEvent{
				SrcID: srcID, DstID: dstID, DurationSec: durationSec, Timestamp: time.Now(),
			})
		}
		if repo != nil {
			_ = repo.Create(&cdr.CallRecord{
				Direction:   "rx",
				SrcID:       srcID,
				DstID:       dstID,
				DurationSec: durationSec,
				EndTime:     time.Now(),
			})
		}
	}
	e.OnCallIgnored = func(srcID, dstID uint32, reason string) {
		hub.BroadcastCallIgnored(srcID, dstID, reason)
		collector.CallIgnored()
		if pub != nil {
			_ = pub.PublishCallIgnored(eventbus.CallIgnoredEvent{
				SrcID: srcID, DstID: dstID, Reason: reason, Timestamp: time.Now(),
			})
		}
		if repo != nil {
			_ = repo.Create(&cdr.CallRecord{
				Direction: "rx",
				SrcID:     srcID,
				DstID:     dstID,
				Ignored:   true,
				EndTime:   time.Now(),
			})
		}
	}
}
