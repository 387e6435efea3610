// Package runnerconfig loads the runner's YAML configuration document (spec
// §6): engine concurrency limits and per-chain transport settings. Grounded
// on config/profile_loader.go's read-file/yaml.Unmarshal/derive-defaults
// shape, generalized from a single profiles directory to one config file,
// and on config/config.go's env-var-driven defaulting for the
// ${ENV_VAR}-expansion step.
package runnerconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaRunnerConfig is the schema tag stamped on runner config documents.
const SchemaRunnerConfig = "ais-runner-config/0.0.1"

// ReceiptPoll controls how a chain's write executor polls for confirmation.
type ReceiptPoll struct {
	IntervalMs  int `yaml:"interval_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

// Signer describes the key material an executor signs write transactions
// with. Type must match its chain family: evm_private_key for eip155:*,
// solana_private_key for solana:*.
type Signer struct {
	Type        string `yaml:"type"`
	PrivateKey  string `yaml:"private_key,omitempty"`
	KeyfilePath string `yaml:"keyfile_path,omitempty"`
}

// ChainConfig holds one chain's transport settings.
type ChainConfig struct {
	RPCURL         string      `yaml:"rpc_url"`
	TimeoutMs      int         `yaml:"timeout_ms"`
	WaitForReceipt bool        `yaml:"wait_for_receipt"`
	ReceiptPoll    ReceiptPoll `yaml:"receipt_poll"`
	Signer         Signer      `yaml:"signer"`
	Commitment     string      `yaml:"commitment,omitempty"`
}

// PerChainLimits caps read/write concurrency for one chain.
type PerChainLimits struct {
	MaxReadConcurrency  int `yaml:"max_read_concurrency"`
	MaxWriteConcurrency int `yaml:"max_write_concurrency"`
}

// EngineConfig holds scheduler-facing concurrency limits.
type EngineConfig struct {
	MaxConcurrency int                       `yaml:"max_concurrency"`
	PerChain       map[string]PerChainLimits `yaml:"per_chain,omitempty"`
}

// Config is the full runner configuration document of spec §6.
type Config struct {
	Schema string                 `yaml:"schema"`
	Engine EngineConfig           `yaml:"engine"`
	Chains map[string]ChainConfig `yaml:"chains"`
}

// chainFamily extracts the CAIP-2-style family prefix ("eip155", "solana")
// from a chain identifier like "eip155:1" or "solana:mainnet-beta".
func chainFamily(chain string) string {
	if i := strings.IndexByte(chain, ':'); i >= 0 {
		return chain[:i]
	}
	return chain
}

// Load reads a runner config document from path, expands ${ENV_VAR}
// placeholders against the process environment, unmarshals it, and
// validates signer/chain-family pairing.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runnerconfig: read %s: %w", path, err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("runnerconfig: parse %s: %w", path, err)
	}

	if cfg.Schema == "" {
		cfg.Schema = SchemaRunnerConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the signer-type/chain-family pairing rule of spec §6 and
// rejects chains with no RPC endpoint configured.
func (c *Config) Validate() error {
	for chain, cc := range c.Chains {
		if cc.RPCURL == "" {
			return fmt.Errorf("runnerconfig: chain %s: rpc_url is required", chain)
		}

		family := chainFamily(chain)
		switch cc.Signer.Type {
		case "":
			// read-only chain entries may omit a signer
		case "evm_private_key":
			if family != "eip155" {
				return fmt.Errorf("runnerconfig: chain %s: signer type %s requires an eip155:* chain", chain, cc.Signer.Type)
			}
		case "solana_private_key":
			if family != "solana" {
				return fmt.Errorf("runnerconfig: chain %s: signer type %s requires a solana:* chain", chain, cc.Signer.Type)
			}
		default:
			return fmt.Errorf("runnerconfig: chain %s: unknown signer type %q", chain, cc.Signer.Type)
		}
	}
	return nil
}

// ChainFamily exposes chainFamily for callers outside this package that
// need to pair a chain identifier with its signer family (e.g. the CLI's
// buildRouter, which picks an executor by family).
func ChainFamily(chain string) string {
	return chainFamily(chain)
}

// LimitsFor returns the per-chain limits configured for chain, or the zero
// value (treated by the scheduler as "unset", deferring to its own
// defaults) if chain has no dedicated entry.
func (e EngineConfig) LimitsFor(chain string) (PerChainLimits, bool) {
	if e.PerChain == nil {
		return PerChainLimits{}, false
	}
	limits, ok := e.PerChain[chain]
	return limits, ok
}
