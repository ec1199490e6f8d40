package config

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxRadioID bounds peer.src_id to nine decimal digits and
// MaxTalkgroupID bounds peer.dst_id to 24 bits (spec §7 "id > 999999999, dst >
// 16777215").
const (
	MaxRadioID     = 999999999
	MaxTalkgroupID = 16777215
)

// validate checks the unmarshalled configuration for the "refuse to
// start" class of error (spec §7 Configuration row): invalid values
// are rejected here rather than discovered at runtime.
func validate(cfg *Config) error {
	if cfg.Peer.TXMode != "" && strings.ToUpper(cfg.Peer.TXMode) != "P25" {
		return fmt.Errorf("peer.tx_mode %q is not implemented (only P25)", cfg.Peer.TXMode)
	}
	if cfg.Peer.SrcID > MaxRadioID {
		return fmt.Errorf("peer.src_id %d exceeds maximum %d", cfg.Peer.SrcID, MaxRadioID)
	}
	if cfg.Peer.DstID > MaxTalkgroupID {
		return fmt.Errorf("peer.dst_id %d exceeds maximum %d", cfg.Peer.DstID, MaxTalkgroupID)
	}

	if cfg.Audio.DropTimeMs < 0 {
		return fmt.Errorf("audio.drop_time_ms must not be negative")
	}

	if cfg.UDPAudio.Enable {
		if cfg.UDPAudio.USRP && (cfg.UDPAudio.RTPFrames || cfg.UDPAudio.UseULaw || cfg.UDPAudio.Metadata) {
			return fmt.Errorf("udp_audio: usrp is exclusive of rtp_frames, use_ulaw, and metadata")
		}
		if cfg.UDPAudio.UseULaw && !cfg.UDPAudio.RTPFrames {
			return fmt.Errorf("udp_audio: use_ulaw requires rtp_frames")
		}
		if cfg.UDPAudio.TargetPort <= 0 || cfg.UDPAudio.TargetPort > 65535 {
			return fmt.Errorf("udp_audio.target_port must be between 1 and 65535")
		}
	}

	if cfg.TEK.Enable {
		algo := strings.ToLower(cfg.TEK.Algo)
		switch algo {
		case "aes", "arc4", "des":
		default:
			return fmt.Errorf("tek.algo %q is invalid (must be aes, arc4, or des)", cfg.TEK.Algo)
		}
		key, err := hex.DecodeString(cfg.TEK.Key)
		if err != nil {
			return fmt.Errorf("tek.key is not valid hex: %w", err)
		}
		wantLen := map[string]int{"aes": 32, "arc4": 32, "des": 8}[algo]
		if len(key) != wantLen {
			return fmt.Errorf("tek.key for algo %s must decode to %d bytes, got %d", algo, wantLen, len(key))
		}
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}

	if cfg.Web.Enabled && (cfg.Web.Port <= 0 || cfg.Web.Port > 65535) {
		return fmt.Errorf("web.port must be between 1 and 65535")
	}

	if cfg.Serial.RTSPTTEnable && cfg.Serial.RTSPTTPort == "" {
		return fmt.Errorf("serial.rts_ptt_port is required when rts_ptt_enable is set")
	}
	if cfg.Serial.CTSCOREnable && cfg.Serial.CTSCORPort == "" {
		return fmt.Errorf("serial.cts_cor_port is required when cts_cor_enable is set")
	}

	return nil
}
