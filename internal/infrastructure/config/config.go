package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the broker and compositor binaries.
type Config struct {
	Limits     LimitsConfig
	Broker     BrokerConfig
	Compositor CompositorConfig
	Status     StatusConfig
	Logging    LogConfig
}

// LimitsConfig holds the process-wide resource ceilings. They are read once
// when the broker starts.
type LimitsConfig struct {
	MaxTotalGPUMemoryMB   uint32 `envconfig:"MAX_TOTAL_GPU_MEMORY" default:"8192"`
	MaxProcessGPUMemoryMB uint32 `envconfig:"MAX_PROCESS_GPU_MEMORY" default:"4096"`
	DefaultGPUMemoryMB    uint32 `envconfig:"DEFAULT_GPU_MEMORY" default:"256"`
	DefaultMaxSurfaces    uint32 `envconfig:"DEFAULT_MAX_SURFACES" default:"16"`
}

// BrokerConfig holds capability broker configuration.
type BrokerConfig struct {
	Socket                 string        `envconfig:"BROKER_SOCKET" default:"/run/gui/broker.sock"`
	RateRPS                float64       `envconfig:"BROKER_RATE_RPS" default:"200"`
	RateBurst              int           `envconfig:"BROKER_RATE_BURST" default:"400"`
	ReconcileInterval      time.Duration `envconfig:"BROKER_RECONCILE_INTERVAL" default:"2s"`
	AuditLog               string        `envconfig:"BROKER_AUDIT_LOG" default:""`
	ProcRoot               string        `envconfig:"BROKER_PROC_ROOT" default:"/proc"`
	SysRoot                string        `envconfig:"BROKER_SYS_ROOT" default:"/sys"`
	MobileOverride         string        `envconfig:"BROKER_MOBILE_OVERRIDE" default:""`
	DriverFailureThreshold uint32        `envconfig:"BROKER_DRIVER_FAILURE_THRESHOLD" default:"5"`
	DriverCooldown         time.Duration `envconfig:"BROKER_DRIVER_COOLDOWN" default:"10s"`
	MetricsAddr            string        `envconfig:"BROKER_METRICS_ADDR" default:""`
}

// CompositorConfig holds compositor runtime configuration.
type CompositorConfig struct {
	Workspaces        int           `envconfig:"COMPOSITOR_WORKSPACES" default:"4"`
	OutputWidth       uint32        `envconfig:"COMPOSITOR_OUTPUT_WIDTH" default:"1920"`
	OutputHeight      uint32        `envconfig:"COMPOSITOR_OUTPUT_HEIGHT" default:"1080"`
	GPUMemoryMB       uint32        `envconfig:"COMPOSITOR_GPU_MEMORY" default:"1024"`
	MaxSurfaces       uint32        `envconfig:"COMPOSITOR_MAX_SURFACES" default:"64"`
	IPCTimeout        time.Duration `envconfig:"COMPOSITOR_IPC_TIMEOUT" default:"2s"`
	LayoutFile        string        `envconfig:"COMPOSITOR_LAYOUT_FILE" default:""`
	InputDir          string        `envconfig:"COMPOSITOR_INPUT_DIR" default:"/dev/input"`
	InputDevices      []string      `envconfig:"COMPOSITOR_INPUT_DEVICES" default:""`
	ExclusiveInput    bool          `envconfig:"COMPOSITOR_EXCLUSIVE_INPUT" default:"true"`
	FocusFollowsMouse bool          `envconfig:"COMPOSITOR_FOCUS_FOLLOWS_MOUSE" default:"false"`
}

// StatusConfig holds the read-only status API configuration.
type StatusConfig struct {
	Addr        string   `envconfig:"STATUS_ADDR" default:"127.0.0.1:8790"`
	Enabled     bool     `envconfig:"STATUS_ENABLED" default:"true"`
	CORSOrigins []string `envconfig:"STATUS_CORS_ORIGINS" default:""`
	RateRPS     float64  `envconfig:"STATUS_RATE_RPS" default:"50"`
	RateBurst   int      `envconfig:"STATUS_RATE_BURST" default:"100"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	// Trace logs a span per broker call and status request
	Trace bool `envconfig:"LOG_TRACE" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxTotalGPUMemoryMB:   8192,
			MaxProcessGPUMemoryMB: 4096,
			DefaultGPUMemoryMB:    256,
			DefaultMaxSurfaces:    16,
		},
		Broker: BrokerConfig{
			Socket:                 "/run/gui/broker.sock",
			RateRPS:                200,
			RateBurst:              400,
			ReconcileInterval:      2 * time.Second,
			ProcRoot:               "/proc",
			SysRoot:                "/sys",
			DriverFailureThreshold: 5,
			DriverCooldown:         10 * time.Second,
		},
		Compositor: CompositorConfig{
			Workspaces:     4,
			OutputWidth:    1920,
			OutputHeight:   1080,
			GPUMemoryMB:    1024,
			MaxSurfaces:    64,
			IPCTimeout:     2 * time.Second,
			InputDir:       "/dev/input",
			ExclusiveInput: true,
		},
		Status: StatusConfig{
			Addr:      "127.0.0.1:8790",
			Enabled:   true,
			RateRPS:   50,
			RateBurst: 100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Trace:       false,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	l := c.Limits
	if l.MaxTotalGPUMemoryMB == 0 || l.MaxProcessGPUMemoryMB == 0 || l.DefaultGPUMemoryMB == 0 || l.DefaultMaxSurfaces == 0 {
		return errors.New("gpu limits must be positive")
	}
	if l.DefaultGPUMemoryMB > l.MaxProcessGPUMemoryMB {
		return fmt.Errorf("DEFAULT_GPU_MEMORY %d exceeds MAX_PROCESS_GPU_MEMORY %d", l.DefaultGPUMemoryMB, l.MaxProcessGPUMemoryMB)
	}
	if l.MaxProcessGPUMemoryMB > l.MaxTotalGPUMemoryMB {
		return fmt.Errorf("MAX_PROCESS_GPU_MEMORY %d exceeds MAX_TOTAL_GPU_MEMORY %d", l.MaxProcessGPUMemoryMB, l.MaxTotalGPUMemoryMB)
	}
	if c.Compositor.Workspaces < 1 {
		return errors.New("COMPOSITOR_WORKSPACES must be at least 1")
	}
	if c.Compositor.OutputWidth == 0 || c.Compositor.OutputHeight == 0 {
		return errors.New("compositor output geometry must be positive")
	}
	if c.Compositor.IPCTimeout <= 0 {
		return errors.New("COMPOSITOR_IPC_TIMEOUT must be positive")
	}
	if _, _, err := c.Broker.Mobile(); err != nil {
		return err
	}
	return nil
}

// Mobile parses BROKER_MOBILE_OVERRIDE. set is false when hardware
// detection should decide.
func (b BrokerConfig) Mobile() (value bool, set bool, err error) {
	switch b.MobileOverride {
	case "":
		return false, false, nil
	case "true", "1":
		return true, true, nil
	case "false", "0":
		return false, true, nil
	default:
		return false, false, fmt.Errorf("BROKER_MOBILE_OVERRIDE must be true or false, got %q", b.MobileOverride)
	}
}
