package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/AlexKimmel/BananaGate/internal/auth"
	"github.com/AlexKimmel/BananaGate/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "./config.yaml"

type Server struct {
	Port           string `yaml:"port"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
	TrustedHops    int    `yaml:"trusted_hops"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"` // "debug","info","warn","error"
	Console        bool   `yaml:"console"`
	PrometheusPath string `yaml:"prometheus_path"`
}

type Auth struct {
	Passcode string `yaml:"passcode"`

	passcodeDefaulted bool
}

// Limits holds the three admission windows as "<windowMs>,<max>" strings.
type Limits struct {
	Short  string `yaml:"short"`
	Medium string `yaml:"medium"`
	Long   string `yaml:"long"`
}

// Counters selects where window hits are counted. An empty StoreURL keeps
// them in process.
type Counters struct {
	StoreURL        string `yaml:"store_url"`
	StoreTimeoutMS  int    `yaml:"store_timeout_ms"`
	SweepIntervalMS int    `yaml:"sweep_interval_ms"`
	ServiceEnabled  bool   `yaml:"service_enabled"`
	ServiceToken    string `yaml:"service_token"`
}

type Static struct {
	Dir string `yaml:"dir"`
}

type Relay struct {
	Enabled   bool `yaml:"enabled"`
	TimeoutMS int  `yaml:"timeout_ms"`
}

type GenAI struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Limits        Limits        `yaml:"limits"`
	Counters      Counters      `yaml:"counters"`
	Static        Static        `yaml:"static"`
	Relay         Relay         `yaml:"relay"`
	GenAI         GenAI         `yaml:"genai"`
}

func (s Server) Addr() string { return ":" + s.Port }

func (s Server) ReadTimeout() time.Duration  { return millis(s.ReadTimeoutMS, 15*time.Second) }
func (s Server) WriteTimeout() time.Duration { return millis(s.WriteTimeoutMS, 0) }
func (s Server) IdleTimeout() time.Duration  { return millis(s.IdleTimeoutMS, 60*time.Second) }

// MaxBody defaults to 20MB; edit requests carry a base64 image.
func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes <= 0 {
		return 20 << 20
	}
	return s.MaxBodyBytes
}

// PasscodeDefaulted reports that no passcode was configured and the built-in
// one is in effect.
func (a Auth) PasscodeDefaulted() bool { return a.passcodeDefaulted }

// Windows returns the admission windows in chain order. Malformed entries
// fall back to their defaults.
func (l Limits) Windows() []ratelimit.Window {
	defs := ratelimit.DefaultWindows()
	raw := []string{l.Short, l.Medium, l.Long}
	out := make([]ratelimit.Window, len(defs))
	for i, def := range defs {
		out[i] = ratelimit.ParseWindow(raw[i], def)
	}
	return out
}

func (c Counters) StoreTimeout() time.Duration  { return millis(c.StoreTimeoutMS, 2*time.Second) }
func (c Counters) SweepInterval() time.Duration { return millis(c.SweepIntervalMS, time.Minute) }

func (r Relay) Timeout() time.Duration { return millis(r.TimeoutMS, 2*time.Minute) }

func millis(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Load reads the optional yaml file at path, applies environment overrides
// from environ (KEY=VALUE entries) and fills defaults.
func Load(path string, environ []string) (*Root, error) {
	var cfg Root
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnvOverrides(&cfg, environ); err != nil {
		return nil, err
	}
	// the counter endpoint is not admission-limited so it must be authenticated
	if cfg.Counters.ServiceEnabled && strings.TrimSpace(cfg.Counters.ServiceToken) == "" {
		return nil, errors.New("counters.service_enabled requires counters.service_token (COUNTER_SERVICE_TOKEN)")
	}

	if strings.TrimSpace(cfg.Server.Port) == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.TrustedHops <= 0 {
		cfg.Server.TrustedHops = 1
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Auth.Passcode == "" {
		cfg.Auth.Passcode = auth.DefaultPasscode
		cfg.Auth.passcodeDefaulted = true
	}
	if cfg.Static.Dir == "" {
		cfg.Static.Dir = "./dist"
	}
	return &cfg, nil
}
