// Package config loads the structured configuration object spec.md §6
// enumerates: per-chain RPC/WS endpoints, the token and pool tables, trading
// symbols, swap-depth and bet-size limits, gas-cost estimates, and optional
// gas-oracle/telemetry/chat credentials. Loaded once at startup from YAML, in
// the teacher's gopkg.in/yaml.v3 style.
package config

import (
	"fmt"
	"os"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/dexarb/go-arbengine/registry"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Chain is one chain's transport endpoints and token/pool tables.
type Chain struct {
	Name        string  `yaml:"name"`
	RPCEndpoint string  `yaml:"rpc_endpoint"`
	WSEndpoint  string  `yaml:"ws_endpoint"`
	Tokens      []Token `yaml:"tokens"`
	Pools       []Pool  `yaml:"pools"`
}

// Token is one entry of a chain's token table.
type Token struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// Pool is one pool descriptor as supplied by configuration.
type Pool struct {
	Exchange string `yaml:"exchange"`
	Version  string `yaml:"version"` // "v2" | "v3"
	Address  string `yaml:"address"`
	Fee      uint32 `yaml:"fee"`
	Token0   string `yaml:"token0"`
	Token1   string `yaml:"token1"`
}

// GasCosts mirrors engine.GasCosts with YAML tags.
type GasCosts struct {
	Base  uint64 `yaml:"base"`
	V2Hop uint64 `yaml:"v2_hop"`
	V3Hop uint64 `yaml:"v3_hop"`
}

// GasOracle holds optional credentials for an external gas-price API; a zero
// value means "no gas oracle configured" and callers fall back to (0, 0).
type GasOracle struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// Telemetry holds optional sinks; empty fields mean "disabled", matching the
// teacher's dotenv-driven InfluxDB/Telegram placeholders.
type Telemetry struct {
	MetricsAddr  string `yaml:"metrics_addr"`
	TelegramHook string `yaml:"telegram_webhook"`
}

// Config is the root configuration object.
type Config struct {
	Chains         []Chain   `yaml:"chains"`
	TradingSymbols []string  `yaml:"trading_symbols"`
	MaxSwaps       int       `yaml:"max_swaps"`
	MaxBetSize     float64   `yaml:"max_bet_size"`
	TargetSpread   float64   `yaml:"target_spread"`
	GasCosts       GasCosts  `yaml:"gas_costs"`
	GasOracle      GasOracle `yaml:"gas_oracle"`
	Telemetry      Telemetry `yaml:"telemetry"`
}

// Load reads and parses a YAML configuration file from path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config file: %v", errs.ErrConfig, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file: %v", errs.ErrConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("%w: at least one chain must be configured", errs.ErrConfig)
	}
	if c.MaxSwaps < 1 {
		return fmt.Errorf("%w: max_swaps must be at least 1", errs.ErrConfig)
	}
	if len(c.TradingSymbols) == 0 {
		return fmt.Errorf("%w: at least one trading symbol must be configured", errs.ErrConfig)
	}
	for _, chain := range c.Chains {
		if chain.RPCEndpoint == "" || chain.WSEndpoint == "" {
			return fmt.Errorf("%w: chain %q is missing an RPC or WS endpoint", errs.ErrConfig, chain.Name)
		}
	}
	return nil
}

// EngineGasCosts converts the YAML gas-cost block to engine.GasCosts.
func (c *Config) EngineGasCosts() engine.GasCosts {
	return engine.GasCosts{Base: c.GasCosts.Base, V2Hop: c.GasCosts.V2Hop, V3Hop: c.GasCosts.V3Hop}
}

// TokenConfigs and PoolConfigs flatten the per-chain tables into the shape
// registry.Build consumes.
func (c *Config) TokenConfigs() []registry.TokenConfig {
	var out []registry.TokenConfig
	for _, chain := range c.Chains {
		for _, t := range chain.Tokens {
			out = append(out, registry.TokenConfig{
				Chain:    chain.Name,
				Symbol:   t.Symbol,
				Address:  common.HexToAddress(t.Address),
				Decimals: t.Decimals,
			})
		}
	}
	return out
}

func (c *Config) PoolConfigs() ([]registry.PoolConfig, error) {
	var out []registry.PoolConfig
	for _, chain := range c.Chains {
		for _, p := range chain.Pools {
			version, err := parseVersion(p.Version)
			if err != nil {
				return nil, fmt.Errorf("%w: chain %q pool %q: %v", errs.ErrConfig, chain.Name, p.Address, err)
			}
			out = append(out, registry.PoolConfig{
				Chain:    chain.Name,
				Exchange: p.Exchange,
				Version:  version,
				Address:  common.HexToAddress(p.Address),
				Fee:      p.Fee,
				Token0:   p.Token0,
				Token1:   p.Token1,
			})
		}
	}
	return out, nil
}

func parseVersion(s string) (engine.Version, error) {
	switch s {
	case "v2":
		return engine.V2, nil
	case "v3":
		return engine.V3, nil
	default:
		return 0, fmt.Errorf("unknown pool version %q, want \"v2\" or \"v3\"", s)
	}
}

// RPCEndpoints and WSEndpoints return the per-chain-name transport map spec.md
// §6 calls RPC_ENDPOINTS/WS_ENDPOINTS.
func (c *Config) RPCEndpoints() map[string]string {
	out := make(map[string]string, len(c.Chains))
	for _, chain := range c.Chains {
		out[chain.Name] = chain.RPCEndpoint
	}
	return out
}

func (c *Config) WSEndpoints() map[string]string {
	out := make(map[string]string, len(c.Chains))
	for _, chain := range c.Chains {
		out[chain.Name] = chain.WSEndpoint
	}
	return out
}
