package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the full bridge configuration (spec §6 "Configuration").
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Peer    PeerConfig    `mapstructure:"peer"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Preamble PreambleConfig `mapstructure:"preamble"`
	UDPAudio UDPAudioConfig `mapstructure:"udp_audio"`
	TEK     TEKConfig     `mapstructure:"tek"`
	Override OverrideConfig `mapstructure:"override"`
	Serial  SerialConfig  `mapstructure:"serial"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Web     WebConfig     `mapstructure:"web"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	CDR     CDRConfig     `mapstructure:"cdr"`
}

// ServerConfig identifies this bridge instance.
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// PeerConfig holds the P25 peer identity and network target (spec §6
// "srcId, dstId").
type PeerConfig struct {
	TXMode     string `mapstructure:"tx_mode"` // only "P25" is implemented
	SrcID      uint32 `mapstructure:"src_id"`
	DstID      uint32 `mapstructure:"dst_id"`
	TargetIP   string `mapstructure:"target_ip"`
	TargetPort int    `mapstructure:"target_port"`
	ListenPort int    `mapstructure:"listen_port"`
}

// AudioConfig holds gain scalars and VOX/drop timing (spec §6
// "rxAudioGain, txAudioGain, ..., voxSampleLevel, dropTimeMs").
type AudioConfig struct {
	RXGain          float64 `mapstructure:"rx_gain"`
	TXGain          float64 `mapstructure:"tx_gain"`
	DecoderGain     float64 `mapstructure:"vocoder_decoder_gain"`
	EncoderGain     float64 `mapstructure:"vocoder_encoder_gain"`
	VOXSampleLevel  int     `mapstructure:"vox_sample_level"`
	DropTimeMs      int     `mapstructure:"drop_time_ms"`
	GrantDemand     bool    `mapstructure:"grant_demand"`
}

// PreambleConfig holds the optional RX-start leader tone (spec §6
// "preambleLeaderTone, preambleTone, preambleLength").
type PreambleConfig struct {
	Enable bool    `mapstructure:"enable"`
	FreqHz float64 `mapstructure:"freq_hz"`
	Length int     `mapstructure:"length"`
}

// UDPAudioConfig selects and configures the UDP audio bridge (spec §6
// "udpAudio, udpRTPFrames, udpUseULaw, udpUsrp, udpFrameTiming,
// udpIgnoreRTPTiming, udpMetadata").
type UDPAudioConfig struct {
	Enable           bool `mapstructure:"enable"`
	RTPFrames        bool `mapstructure:"rtp_frames"`
	UseULaw          bool `mapstructure:"use_ulaw"`
	USRP             bool `mapstructure:"usrp"`
	FrameTimingMs    int  `mapstructure:"frame_timing_ms"`
	IgnoreRTPTiming  bool `mapstructure:"ignore_rtp_timing"`
	Metadata         bool `mapstructure:"metadata"`
	ListenPort       int  `mapstructure:"listen_port"`
	TargetIP         string `mapstructure:"target_ip"`
	TargetPort       int  `mapstructure:"target_port"`
}

// TEKConfig holds the session-encryption parameters (spec §6
// "tek.enable, tek.algo, tek.keyId").
type TEKConfig struct {
	Enable bool   `mapstructure:"enable"`
	Algo   string `mapstructure:"algo"` // aes, arc4, des
	KeyID  uint16 `mapstructure:"key_id"`
	Key    string `mapstructure:"key"` // hex-encoded preshared key
}

// OverrideConfig holds source-ID override policy (spec §6
// "overrideSourceIdFromMDC, overrideSourceIdFromUDP,
// resetCallForSourceIdChange").
type OverrideConfig struct {
	SourceIDFromMDC    bool `mapstructure:"source_id_from_mdc"`
	SourceIDFromUDP    bool `mapstructure:"source_id_from_udp"`
	ResetCallOnIDChange bool `mapstructure:"reset_call_on_id_change"`
}

// SerialConfig holds the serial-line PTT/COR options (spec §6
// "rtsPttEnable, rtsPttPort, rtsPttHoldoffMs, ctsCorEnable, ctsCorPort,
// ctsCorInvert, ctsCorHoldoffMs").
type SerialConfig struct {
	RTSPTTEnable    bool   `mapstructure:"rts_ptt_enable"`
	RTSPTTPort      string `mapstructure:"rts_ptt_port"`
	RTSPTTHoldoffMs int    `mapstructure:"rts_ptt_holdoff_ms"`
	CTSCOREnable    bool   `mapstructure:"cts_cor_enable"`
	CTSCORPort      string `mapstructure:"cts_cor_port"`
	CTSCORInvert    bool   `mapstructure:"cts_cor_invert"`
	CTSCORHoldoffMs int    `mapstructure:"cts_cor_holdoff_ms"`
}

// MQTTConfig holds the event-bus publisher configuration.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// WebConfig holds the monitor dashboard configuration.
type WebConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	AuthRequired bool   `mapstructure:"auth_required"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus exporter configuration.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// CDRConfig holds call-detail-record storage configuration.
type CDRConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// Load loads configuration from file and environment variables.
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/p25bridge")
	}

	viper.SetEnvPrefix("P25BRIDGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no config file is fine, defaults apply
		} else if os.IsNotExist(err) {
			// explicitly-named file missing is also fine
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.name", "p25bridge")
	viper.SetDefault("server.description", "P25 Phase 1 call bridge")

	viper.SetDefault("peer.tx_mode", "P25")

	viper.SetDefault("audio.rx_gain", 1.0)
	viper.SetDefault("audio.tx_gain", 1.0)
	viper.SetDefault("audio.vocoder_decoder_gain", 1.0)
	viper.SetDefault("audio.vocoder_encoder_gain", 1.0)
	viper.SetDefault("audio.vox_sample_level", 500)
	viper.SetDefault("audio.drop_time_ms", 180)

	viper.SetDefault("preamble.length", 160)

	viper.SetDefault("udp_audio.frame_timing_ms", 20)

	viper.SetDefault("serial.rts_ptt_holdoff_ms", 250)
	viper.SetDefault("serial.cts_cor_holdoff_ms", 250)

	viper.SetDefault("mqtt.topic_prefix", "p25bridge")
	viper.SetDefault("mqtt.client_id", "p25bridge")
	viper.SetDefault("mqtt.qos", 1)

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")

	viper.SetDefault("cdr.enabled", true)
	viper.SetDefault("cdr.dsn", "p25bridge.db")
}
