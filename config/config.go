// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath 未显式传入路径时，从该环境变量读取配置文件位置
const EnvConfigPath = "VAULT_CONFIG"

// DefaultProgramID vault 程序的默认程序地址（base58）
const DefaultProgramID = "Vau1tProgram1111111111111111111111111111111"

// Config 主配置结构
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig HTTP/3服务器配置
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"` // ":6000"
	// 证书配置，文件不存在时自动生成自签名证书
	CertFile         string `yaml:"cert_file"`
	KeyFile          string `yaml:"key_file"`
	CertValidityDays int    `yaml:"cert_validity_days"` // 365

	// QUIC配置
	QUICKeepAlivePeriod time.Duration `yaml:"quic_keep_alive_period"` // 10 * time.Second
	QUICMaxIdleTimeout  time.Duration `yaml:"quic_max_idle_timeout"`  // 5 * time.Minute
	QUICAllow0RTT       bool          `yaml:"quic_allow_0rtt"`        // true

	// HTTP配置
	MaxRequestBodySize int64 `yaml:"max_request_body_size"` // 1 << 20
	// 是否额外启动 TCP TLS 监听（便于 curl 等只支持 TCP 的工具）
	EnableTCP bool `yaml:"enable_tcp"`

	// 限流：每个 IP 每秒请求数与突发量
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"` // 200
	RateLimitBurst     int     `yaml:"rate_limit_burst"`      // 400
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path     string `yaml:"path"`      // "./data/vault"
	InMemory bool   `yaml:"in_memory"` // 测试/演示用
	// BadgerDB配置
	ValueLogFileSize int64 `yaml:"value_log_file_size"` // 64 << 20 (64MB)
	SyncWrites       bool  `yaml:"sync_writes"`         // true
}

// RuntimeConfig 账本运行时配置
type RuntimeConfig struct {
	ProgramID string `yaml:"program_id"`

	// 租金参数，对应原链上 Rent sysvar 的默认值
	LamportsPerByteYear uint64 `yaml:"lamports_per_byte_year"` // 3480
	ExemptionYears      uint64 `yaml:"exemption_years"`        // 2
	AccountOverhead     uint64 `yaml:"account_overhead"`       // 128

	// 水龙头（仅开发环境）
	FaucetEnabled   bool   `yaml:"faucet_enabled"`
	FaucetMaxAmount uint64 `yaml:"faucet_max_amount"` // 单次上限 lamports

	// 账户锁分片数与去重缓存
	LockStripes     int `yaml:"lock_stripes"`      // 256
	ReplayCacheSize int `yaml:"replay_cache_size"` // 10000
	DeriveCacheSize int `yaml:"derive_cache_size"` // 4096
}

// ClientConfig vaultctl 客户端配置
type ClientConfig struct {
	NodeURL string        `yaml:"node_url"` // "https://127.0.0.1:6000"
	Timeout time.Duration `yaml:"timeout"`  // 10 * time.Second
	KeyFile string        `yaml:"key_file"` // "./vault.key"
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			ListenAddr:          ":6000",
			CertFile:            "server.crt",
			KeyFile:             "server.key",
			CertValidityDays:    365,
			QUICKeepAlivePeriod: 10 * time.Second,
			QUICMaxIdleTimeout:  5 * time.Minute,
			QUICAllow0RTT:       true,
			MaxRequestBodySize:  1 << 20,
			EnableTCP:           true,
			RateLimitPerSecond:  200,
			RateLimitBurst:      400,
		},
		Database: DatabaseConfig{
			Path:             "./data/vault",
			InMemory:         false,
			ValueLogFileSize: 64 << 20,
			SyncWrites:       true,
		},
		Runtime: RuntimeConfig{
			ProgramID:           DefaultProgramID,
			LamportsPerByteYear: 3480,
			ExemptionYears:      2,
			AccountOverhead:     128,
			FaucetEnabled:       false,
			FaucetMaxAmount:     10_000_000_000,
			LockStripes:         256,
			ReplayCacheSize:     10000,
			DeriveCacheSize:     4096,
		},
		Client: ClientConfig{
			NodeURL: "https://127.0.0.1:6000",
			Timeout: 10 * time.Second,
			KeyFile: "./vault.key",
		},
	}
}

// LoadFromFile 在默认配置之上叠加 YAML 文件。
// path 为空时读取 VAULT_CONFIG；两者都为空则直接返回默认配置。
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	if c.Runtime.ProgramID == "" {
		return errors.New("runtime.program_id is required")
	}
	if c.Runtime.LockStripes <= 0 {
		return fmt.Errorf("runtime.lock_stripes must be positive")
	}
	if c.Runtime.ReplayCacheSize <= 0 {
		return fmt.Errorf("runtime.replay_cache_size must be positive")
	}
	if c.Runtime.ExemptionYears == 0 {
		return fmt.Errorf("runtime.exemption_years must be positive")
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	if c.Server.MaxRequestBodySize <= 0 {
		return fmt.Errorf("server.max_request_body_size must be positive")
	}
	return nil
}
