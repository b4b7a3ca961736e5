package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cubic461/Noodle-Core-sub003/internal/common"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration for a mesh node. Values come from an
// optional YAML file with NOODLE_* environment variables layered on top.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Mesh       MeshConfig       `yaml:"mesh"`
	Balancer   BalancerConfig   `yaml:"balancer"`
	Scaling    ScalingConfig    `yaml:"scaling"`
	Membership MembershipConfig `yaml:"membership"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (server ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", server.Host, server.Port)
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// MeshConfig holds the orchestrator loop interval and the node health policy.
// Intervals are seconds, latencies milliseconds.
type MeshConfig struct {
	NodeId                string  `yaml:"node_id"`
	UpdateIntervalSeconds float64 `yaml:"update_interval_seconds"`
	MaxLatencyMs          float64 `yaml:"max_latency_ms"`
	MinQuality            float64 `yaml:"min_quality"`
}

func (mesh MeshConfig) UpdateInterval() time.Duration {
	return secondsToDuration(mesh.UpdateIntervalSeconds)
}

type BalancerConfig struct {
	Strategy string `yaml:"strategy"`
}

type ScalingConfig struct {
	Enabled                   bool    `yaml:"enabled"`
	CpuThreshold              float64 `yaml:"cpu_threshold"`
	MemoryThreshold           float64 `yaml:"memory_threshold"`
	RequestThreshold          int64   `yaml:"request_threshold"`
	ResponseTimeThresholdMs   float64 `yaml:"response_time_threshold_ms"`
	ErrorRateThreshold        float64 `yaml:"error_rate_threshold"`
	MinNodes                  int     `yaml:"min_nodes"`
	MaxNodes                  int     `yaml:"max_nodes"`
	ScaleUpCooldownSeconds    float64 `yaml:"scale_up_cooldown_seconds"`
	ScaleDownCooldownSeconds  float64 `yaml:"scale_down_cooldown_seconds"`
	EvaluationIntervalSeconds float64 `yaml:"evaluation_interval_seconds"`
}

func (scaling ScalingConfig) ScaleUpCooldown() time.Duration {
	return secondsToDuration(scaling.ScaleUpCooldownSeconds)
}

func (scaling ScalingConfig) ScaleDownCooldown() time.Duration {
	return secondsToDuration(scaling.ScaleDownCooldownSeconds)
}

func (scaling ScalingConfig) EvaluationInterval() time.Duration {
	return secondsToDuration(scaling.EvaluationIntervalSeconds)
}

type MembershipConfig struct {
	Provider        string `yaml:"provider"`
	ClusterFilePath string `yaml:"cluster_file_path"`
	KubeconfigPath  string `yaml:"kubeconfig_path"`
}

type MessagingConfig struct {
	Transport string   `yaml:"transport"`
	Peers     []string `yaml:"peers"`
}

type MonitoringConfig struct {
	Prometheus bool `yaml:"prometheus"`
}

// Load reads the configuration file at configPath, expands ${VAR} references,
// applies environment overrides and validates the result. A missing file is
// not an error; defaults are used instead.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			expanded := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.overrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:    "INFO",
			FilePath: "log/run.log",
		},
		Mesh: MeshConfig{
			UpdateIntervalSeconds: 10.0,
			MaxLatencyMs:          50.0,
			MinQuality:            0.7,
		},
		Balancer: BalancerConfig{
			Strategy: common.STRATEGY_RESOURCE_BASED,
		},
		Scaling: ScalingConfig{
			Enabled:                   true,
			CpuThreshold:              80.0,
			MemoryThreshold:           85.0,
			RequestThreshold:          1000,
			ResponseTimeThresholdMs:   1000.0,
			ErrorRateThreshold:        0.05,
			MinNodes:                  2,
			MaxNodes:                  10,
			ScaleUpCooldownSeconds:    300,
			ScaleDownCooldownSeconds:  600,
			EvaluationIntervalSeconds: 30,
		},
		Membership: MembershipConfig{
			Provider:        common.MEMBER_PROVIDER_STATIC,
			ClusterFilePath: "configs/cluster/cluster.csv",
		},
		Messaging: MessagingConfig{
			Transport: common.TRANSPORT_INPROC,
		},
		Monitoring: MonitoringConfig{
			Prometheus: true,
		},
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} references with their environment values,
// leaving unset references untouched.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}

func (cfg *Config) overrideFromEnv() {
	if host := os.Getenv("NOODLE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	cfg.Server.Port = getEnvInt("NOODLE_SERVER_PORT", cfg.Server.Port)

	if level := os.Getenv("NOODLE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if nodeId := os.Getenv("NOODLE_NODE_ID"); nodeId != "" {
		cfg.Mesh.NodeId = nodeId
	}
	cfg.Mesh.UpdateIntervalSeconds = getEnvFloat("NOODLE_MESH_UPDATE_INTERVAL", cfg.Mesh.UpdateIntervalSeconds)

	if strategy := os.Getenv("NOODLE_BALANCER_STRATEGY"); strategy != "" {
		cfg.Balancer.Strategy = strategy
	}

	cfg.Scaling.Enabled = getEnvBool("NOODLE_SCALING_ENABLED", cfg.Scaling.Enabled)
	cfg.Scaling.MinNodes = getEnvInt("NOODLE_SCALING_MIN_NODES", cfg.Scaling.MinNodes)
	cfg.Scaling.MaxNodes = getEnvInt("NOODLE_SCALING_MAX_NODES", cfg.Scaling.MaxNodes)

	if provider := os.Getenv("NOODLE_MEMBER_PROVIDER"); provider != "" {
		cfg.Membership.Provider = provider
	}
	if clusterFile := os.Getenv("NOODLE_CLUSTER_FILE"); clusterFile != "" {
		cfg.Membership.ClusterFilePath = clusterFile
	}
	if kubeconfig := os.Getenv("NOODLE_KUBECONFIG"); kubeconfig != "" {
		cfg.Membership.KubeconfigPath = kubeconfig
	}

	if transport := os.Getenv("NOODLE_TRANSPORT"); transport != "" {
		cfg.Messaging.Transport = transport
	}
	if peers := os.Getenv("NOODLE_PEERS"); peers != "" {
		cfg.Messaging.Peers = nil
		for _, peer := range strings.Split(peers, ",") {
			if trimmed := strings.TrimSpace(peer); trimmed != "" {
				cfg.Messaging.Peers = append(cfg.Messaging.Peers, trimmed)
			}
		}
	}

	cfg.Monitoring.Prometheus = getEnvBool("NOODLE_PROMETHEUS", cfg.Monitoring.Prometheus)
}

func (cfg *Config) Validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if hclog.LevelFromString(cfg.Logging.Level) == hclog.NoLevel {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	if cfg.Mesh.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("mesh update interval must be positive, got %g", cfg.Mesh.UpdateIntervalSeconds)
	}
	if cfg.Mesh.MaxLatencyMs <= 0 {
		return fmt.Errorf("mesh max latency must be positive, got %g", cfg.Mesh.MaxLatencyMs)
	}
	if cfg.Mesh.MinQuality < 0 || cfg.Mesh.MinQuality > 1 {
		return fmt.Errorf("mesh min quality must be within [0,1], got %g", cfg.Mesh.MinQuality)
	}

	validStrategies := map[string]bool{
		common.STRATEGY_ROUND_ROBIN:          true,
		common.STRATEGY_LEAST_CONNECTIONS:    true,
		common.STRATEGY_LEAST_RESPONSE_TIME:  true,
		common.STRATEGY_RESOURCE_BASED:       true,
		common.STRATEGY_WEIGHTED_ROUND_ROBIN: true,
	}
	if !validStrategies[cfg.Balancer.Strategy] {
		return fmt.Errorf("unknown balancing strategy: %s", cfg.Balancer.Strategy)
	}

	if cfg.Scaling.MinNodes < 1 {
		return fmt.Errorf("min nodes must be at least 1, got %d", cfg.Scaling.MinNodes)
	}
	if cfg.Scaling.MaxNodes < cfg.Scaling.MinNodes {
		return fmt.Errorf("max nodes %d is below min nodes %d", cfg.Scaling.MaxNodes, cfg.Scaling.MinNodes)
	}
	if cfg.Scaling.CpuThreshold <= 0 || cfg.Scaling.MemoryThreshold <= 0 ||
		cfg.Scaling.RequestThreshold <= 0 || cfg.Scaling.ResponseTimeThresholdMs <= 0 ||
		cfg.Scaling.ErrorRateThreshold <= 0 {
		return fmt.Errorf("scaling thresholds must be positive")
	}
	if cfg.Scaling.ScaleUpCooldownSeconds < 0 || cfg.Scaling.ScaleDownCooldownSeconds < 0 {
		return fmt.Errorf("scaling cooldowns must not be negative")
	}
	if cfg.Scaling.EvaluationIntervalSeconds <= 0 {
		return fmt.Errorf("scaling evaluation interval must be positive, got %g", cfg.Scaling.EvaluationIntervalSeconds)
	}

	switch cfg.Membership.Provider {
	case common.MEMBER_PROVIDER_STATIC:
		if cfg.Membership.ClusterFilePath == "" {
			return fmt.Errorf("static membership requires a cluster file path")
		}
	case common.MEMBER_PROVIDER_KUBERNETES:
	default:
		return fmt.Errorf("unknown membership provider: %s", cfg.Membership.Provider)
	}

	switch cfg.Messaging.Transport {
	case common.TRANSPORT_INPROC, common.TRANSPORT_WEBSOCKET:
	default:
		return fmt.Errorf("unknown messaging transport: %s", cfg.Messaging.Transport)
	}

	return nil
}

// HELPER METHODS

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func secondsToDuration(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}
