package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures runtime configuration for the marketplace daemon.
type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	DataDir        string `toml:"DataDir"`
	StakeToken     string `toml:"StakeToken"`
	Authority      string `toml:"Authority"`
	FeeRecipient   string `toml:"FeeRecipient"`
	Arbitrator     string `toml:"Arbitrator"`
	MinimumStake   string `toml:"MinimumStake"`
	ArbitrationFee string `toml:"ArbitrationFee"`
	BurnBps        uint64 `toml:"BurnBps"`
	ProtocolFeeBps uint64 `toml:"ProtocolFeeBps"`
	DisputeTimeout int64  `toml:"DisputeTimeoutSeconds"`
	RateLimitRPS   int    `toml:"RateLimitRPS"`
	RateLimitBurst int    `toml:"RateLimitBurst"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./dagora-data"
	}
	if strings.TrimSpace(cfg.MinimumStake) == "" {
		cfg.MinimumStake = "0"
	}
	if strings.TrimSpace(cfg.ArbitrationFee) == "" {
		cfg.ArbitrationFee = "0"
	}
	if cfg.DisputeTimeout <= 0 {
		cfg.DisputeTimeout = 7 * 24 * 60 * 60
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
}

// Validate checks address and amount fields without mutating the config.
func (c *Config) Validate() error {
	for field, value := range map[string]string{
		"StakeToken":   c.StakeToken,
		"Authority":    c.Authority,
		"FeeRecipient": c.FeeRecipient,
		"Arbitrator":   c.Arbitrator,
	} {
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	for field, value := range map[string]string{
		"MinimumStake":   c.MinimumStake,
		"ArbitrationFee": c.ArbitrationFee,
	} {
		if _, err := ParseAmount(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	if c.BurnBps > 10_000 {
		return fmt.Errorf("config: BurnBps exceeds 10000")
	}
	if c.ProtocolFeeBps > 10_000 {
		return fmt.Errorf("config: ProtocolFeeBps exceeds 10000")
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	zero := "0x" + strings.Repeat("00", 20)
	cfg.StakeToken = zero
	cfg.Authority = zero
	cfg.FeeRecipient = zero
	cfg.Arbitrator = zero
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("invalid address %q: want 20 bytes, got %d", s, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// ParseAmount decodes a non-negative decimal amount.
func ParseAmount(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return amount, nil
}
