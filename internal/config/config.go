package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"remoteplay/native/internal/domain"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment overrides. They take precedence over the TOML file.
const (
	EnvSignalingURL = "REMOTEPLAY_SIGNALING_URL"
	EnvStunURL      = "REMOTEPLAY_STUN_URL"
	EnvTurnURL      = "REMOTEPLAY_TURN_URL"
	EnvTurnUser     = "REMOTEPLAY_TURN_USER"
	EnvTurnPass     = "REMOTEPLAY_TURN_PASS"
	EnvAPIVersion   = "REMOTEPLAY_API_VERSION"
	EnvLogLevel     = "REMOTEPLAY_LOG_LEVEL"
)

// Config holds the application configuration.
type Config struct {
	Session  domain.Session `toml:"session"`
	Stream   Stream         `toml:"stream"`
	Timeouts Timeouts       `toml:"timeouts"`
	Stats    Stats          `toml:"stats"`
	Log      Log            `toml:"log"`
}

type Stream struct {
	APIVersion           *int     `toml:"api_version"`
	Video                bool     `toml:"video"`
	Audio                bool     `toml:"audio"`
	Speaker              bool     `toml:"speaker"`
	Microphone           bool     `toml:"microphone"`
	Camera               bool     `toml:"camera"`
	DeviceType           string   `toml:"device_type"`
	ForegroundActivity   string   `toml:"foreground_activity"`
	PreferredVideoCodecs []string `toml:"preferred_video_codecs"`
	DataChannels         []string `toml:"data_channels"`
}

type Timeouts struct {
	Signaling       Duration `toml:"signaling"`
	DisconnectGrace Duration `toml:"disconnect_grace"`
	RPC             Duration `toml:"rpc"`
}

type Stats struct {
	Enable   *bool    `toml:"enable"`
	Interval Duration `toml:"interval"`
}

type Log struct {
	Level string `toml:"level"`
}

// Duration decodes TOML strings such as "10s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

var activityPattern = regexp.MustCompile(`(^([A-Za-z][A-Za-z\d_]*\.){2,}|^\.)[A-Za-z][A-Za-z\d_]*$`)

// Load reads configuration from a .env file (if present), the TOML file at
// path (if non-empty) and environment variables, in that order of
// increasing precedence.
func Load(path string) (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvSignalingURL); v != "" {
		c.Session.SignalingURL = v
	}
	if v := os.Getenv(EnvStunURL); v != "" {
		c.Session.RelayServers = append(c.Session.RelayServers, domain.RelayServer{URLs: []string{v}})
	}
	if v := os.Getenv(EnvTurnURL); v != "" {
		c.Session.RelayServers = append(c.Session.RelayServers, domain.RelayServer{
			URLs:       []string{v},
			Username:   os.Getenv(EnvTurnUser),
			Credential: os.Getenv(EnvTurnPass),
		})
	}
	if v := os.Getenv(EnvAPIVersion); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAPIVersion, err)
		}
		c.Stream.APIVersion = &n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Stream.APIVersion == nil {
		v := domain.MaxAPIVersion
		c.Stream.APIVersion = &v
	}
	if c.Timeouts.Signaling.Duration <= 0 {
		c.Timeouts.Signaling.Duration = 5 * time.Minute
	}
	if c.Timeouts.DisconnectGrace.Duration <= 0 {
		c.Timeouts.DisconnectGrace.Duration = 10 * time.Second
	}
	if c.Timeouts.RPC.Duration <= 0 {
		c.Timeouts.RPC.Duration = time.Second
	}
	if c.Stats.Enable == nil {
		enable := true
		c.Stats.Enable = &enable
	}
	if c.Stats.Interval.Duration <= 0 {
		c.Stats.Interval.Duration = time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the settings the remote endpoint would reject.
func (c *Config) Validate() error {
	if v := c.apiVersion(); v < 0 || v > domain.MaxAPIVersion {
		return fmt.Errorf("stream.api_version %d out of range 0..%d", v, domain.MaxAPIVersion)
	}
	for _, codec := range c.Stream.PreferredVideoCodecs {
		if !domain.IsSupportedVideoCodec(codec) {
			return fmt.Errorf("stream.preferred_video_codecs: unsupported codec %q", codec)
		}
	}
	if a := c.Stream.ForegroundActivity; a != "" && !activityPattern.MatchString(a) {
		return fmt.Errorf("stream.foreground_activity: invalid activity name %q", a)
	}
	if len(c.Stream.DataChannels) > domain.MaxDataChannels {
		return fmt.Errorf("stream.data_channels: at most %d channels allowed", domain.MaxDataChannels)
	}
	seen := make(map[string]bool, len(c.Stream.DataChannels))
	for _, name := range c.Stream.DataChannels {
		switch {
		case name == "":
			return errors.New("stream.data_channels: empty name")
		case name == domain.ControlChannelLabel:
			return fmt.Errorf("stream.data_channels: %q is reserved", name)
		case seen[name]:
			return fmt.Errorf("stream.data_channels: duplicate name %q", name)
		}
		seen[name] = true
	}
	return nil
}

func (c *Config) apiVersion() int {
	if c.Stream.APIVersion == nil {
		return domain.MaxAPIVersion
	}
	return *c.Stream.APIVersion
}

// StreamSettings converts the [stream] section for the session engine.
func (c *Config) StreamSettings() domain.StreamSettings {
	s := c.Stream
	return domain.StreamSettings{
		APIVersion:           c.apiVersion(),
		Video:                s.Video,
		Audio:                s.Audio,
		Speaker:              s.Speaker,
		Microphone:           s.Microphone,
		Camera:               s.Camera,
		DeviceType:           s.DeviceType,
		ForegroundActivity:   s.ForegroundActivity,
		PreferredVideoCodecs: s.PreferredVideoCodecs,
	}
}

// StatsEnabled reports whether stats polling is on.
func (c *Config) StatsEnabled() bool {
	return c.Stats.Enable == nil || *c.Stats.Enable
}
