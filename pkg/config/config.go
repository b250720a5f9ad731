package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cl8y-bridge/bridge-core/pkg/redact"
)

// EVMChainConfig describes one statically configured EVM chain.
//
// RegistryID is the bridge registry's 4-byte chain id; NativeID is the
// chain's own eth_chainId. Both are stored because the transfer hash is
// keyed by the former and transaction signing by the latter.
type EVMChainConfig struct {
	Name           string
	RegistryID     uint32
	NativeID       uint64
	RPCURL         string
	BridgeAddress  string
	FinalityBlocks int

	// GasMultiplier scales the node's suggested gas price; MaxGasPriceGwei
	// is the ceiling any attempt (including underpriced re-bumps) is
	// clamped to.
	GasMultiplier   float64
	MaxGasPriceGwei int64

	Enabled bool
}

// CosmosChainConfig describes one statically configured Cosmos chain.
type CosmosChainConfig struct {
	Name           string
	RegistryID     uint32
	ChainID        string // cosmos chain-id string, e.g. "columbus-5"
	LCDURL         string
	BridgeAddress  string
	Bech32Prefix   string
	FinalityBlocks int
	Enabled        bool
}

// Config holds all configuration for the bridge coordination plane.
type Config struct {
	// Store (Postgres)
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Server
	MetricsAddr string
	HealthAddr  string

	// Chains
	EVMChains    []EVMChainConfig
	CosmosChains []CosmosChainConfig

	// Signers (redacted at rest)
	OperatorSignerKey redact.Redacted[string]
	CancelerSignerKey redact.Redacted[string]

	// Poll interval overrides (0 means "use component default")
	OperatorPollInterval time.Duration
	CancelerPollInterval time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
//
// Required variables have no defaults and must be explicitly set; call
// Validate() after Load() to enforce that before starting a service.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 10),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 2),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:  getEnv("HEALTH_ADDR", "0.0.0.0:8081"),

		OperatorSignerKey: redact.New(getEnv("OPERATOR_SIGNER_KEY", "")),
		CancelerSignerKey: redact.New(getEnv("CANCELER_SIGNER_KEY", "")),

		OperatorPollInterval: getEnvDuration("OPERATOR_POLL_INTERVAL", 0),
		CancelerPollInterval: getEnvDuration("CANCELER_POLL_INTERVAL", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	evmChains, err := loadEVMChains()
	if err != nil {
		return nil, fmt.Errorf("failed to load EVM chains: %w", err)
	}
	cfg.EVMChains = evmChains

	cosmosChains, err := loadCosmosChains()
	if err != nil {
		return nil, fmt.Errorf("failed to load Cosmos chains: %w", err)
	}
	cfg.CosmosChains = cosmosChains

	return cfg, nil
}

func loadEVMChains() ([]EVMChainConfig, error) {
	count := getEnvInt("EVM_CHAINS_COUNT", 0)
	chains := make([]EVMChainConfig, 0, count)

	for i := 0; i < count; i++ {
		prefix := fmt.Sprintf("EVM_CHAIN_%d_", i)
		name := getEnv(prefix+"NAME", "")
		if name == "" {
			return nil, fmt.Errorf("%sNAME is required", prefix)
		}

		chains = append(chains, EVMChainConfig{
			Name:            name,
			RegistryID:      uint32(getEnvInt64(prefix+"CHAIN_ID", 0)),
			NativeID:        uint64(getEnvInt64(prefix+"NATIVE_ID", 0)),
			RPCURL:          getEnv(prefix+"RPC_URL", ""),
			BridgeAddress:   getEnv(prefix+"BRIDGE_ADDRESS", ""),
			FinalityBlocks:  getEnvInt(prefix+"FINALITY_BLOCKS", 12),
			GasMultiplier:   getEnvFloat(prefix+"GAS_MULTIPLIER", 1.0),
			MaxGasPriceGwei: getEnvInt64(prefix+"MAX_GAS_PRICE_GWEI", 500),
			Enabled:         getEnvBool(prefix+"ENABLED", true),
		})
	}

	return chains, nil
}

func loadCosmosChains() ([]CosmosChainConfig, error) {
	count := getEnvInt("COSMOS_CHAINS_COUNT", 0)
	chains := make([]CosmosChainConfig, 0, count)

	for i := 0; i < count; i++ {
		prefix := fmt.Sprintf("COSMOS_CHAIN_%d_", i)
		name := getEnv(prefix+"NAME", "")
		if name == "" {
			return nil, fmt.Errorf("%sNAME is required", prefix)
		}

		chains = append(chains, CosmosChainConfig{
			Name:           name,
			RegistryID:     uint32(getEnvInt64(prefix+"REGISTRY_ID", 0)),
			ChainID:        getEnv(prefix+"CHAIN_ID", ""),
			LCDURL:         getEnv(prefix+"LCD_URL", ""),
			BridgeAddress:  getEnv(prefix+"BRIDGE_ADDRESS", ""),
			Bech32Prefix:   getEnv(prefix+"BECH32_PREFIX", "terra"),
			FinalityBlocks: getEnvInt(prefix+"FINALITY_BLOCKS", 1),
			Enabled:        getEnvBool(prefix+"ENABLED", true),
		})
	}

	return chains, nil
}

// Validate checks that the configuration is complete enough to run the
// operator service. The canceler service is checked by ValidateCanceler.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}

	if len(c.EVMChains) == 0 && len(c.CosmosChains) == 0 {
		errs = append(errs, "at least one EVM or Cosmos chain must be configured")
	}

	for _, ch := range c.EVMChains {
		if ch.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("EVM chain %q: RPC_URL is required", ch.Name))
		}
		if ch.BridgeAddress == "" {
			errs = append(errs, fmt.Sprintf("EVM chain %q: BRIDGE_ADDRESS is required", ch.Name))
		}
	}

	for _, ch := range c.CosmosChains {
		if ch.LCDURL == "" {
			errs = append(errs, fmt.Sprintf("Cosmos chain %q: LCD_URL is required", ch.Name))
		}
		if ch.BridgeAddress == "" {
			errs = append(errs, fmt.Sprintf("Cosmos chain %q: BRIDGE_ADDRESS is required", ch.Name))
		}
	}

	if c.OperatorSignerKey.Expose() == "" {
		errs = append(errs, "OPERATOR_SIGNER_KEY is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ValidateCanceler checks the subset of configuration the canceler service
// needs, since it doesn't share the operator's signer.
func (c *Config) ValidateCanceler() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	if len(c.EVMChains) == 0 && len(c.CosmosChains) == 0 {
		errs = append(errs, "at least one EVM or Cosmos chain must be configured")
	}
	if c.CancelerSignerKey.Expose() == "" {
		errs = append(errs, "CANCELER_SIGNER_KEY is required but not set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
