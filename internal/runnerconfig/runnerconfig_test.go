package runnerconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "runner.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ParsesAndExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "https://rpc.example.test")
	path := writeConfig(t, `
schema: ais-runner-config/0.0.1
engine:
  max_concurrency: 8
  per_chain:
    eip155:1:
      max_read_concurrency: 4
      max_write_concurrency: 1
chains:
  eip155:1:
    rpc_url: "${TEST_RPC_URL}"
    timeout_ms: 5000
    wait_for_receipt: true
    receipt_poll:
      interval_ms: 500
      max_attempts: 20
    signer:
      type: evm_private_key
      private_key: "${MISSING_ENV_VAR}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	chain := cfg.Chains["eip155:1"]
	if chain.RPCURL != "https://rpc.example.test" {
		t.Fatalf("expected expanded rpc_url, got %q", chain.RPCURL)
	}
	if chain.Signer.PrivateKey != "" {
		t.Fatalf("expected unset env var to expand to empty string, got %q", chain.Signer.PrivateKey)
	}
	if cfg.Engine.MaxConcurrency != 8 {
		t.Fatalf("max_concurrency = %d, want 8", cfg.Engine.MaxConcurrency)
	}
	limits, ok := cfg.Engine.LimitsFor("eip155:1")
	if !ok || limits.MaxReadConcurrency != 4 {
		t.Fatalf("expected per-chain limits, got %+v ok=%v", limits, ok)
	}
}

func TestLoad_RejectsMismatchedSignerFamily(t *testing.T) {
	path := writeConfig(t, `
chains:
  solana:mainnet-beta:
    rpc_url: "https://api.mainnet-beta.solana.com"
    timeout_ms: 3000
    signer:
      type: evm_private_key
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for evm signer on a solana chain")
	}
}

func TestLoad_RejectsMissingRPCURL(t *testing.T) {
	path := writeConfig(t, `
chains:
  eip155:1:
    timeout_ms: 3000
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing rpc_url")
	}
}

func TestChainFamily(t *testing.T) {
	cases := map[string]string{
		"eip155:1":            "eip155",
		"solana:mainnet-beta": "solana",
		"eip155":              "eip155",
	}
	for chain, want := range cases {
		if got := ChainFamily(chain); got != want {
			t.Errorf("ChainFamily(%q) = %q, want %q", chain, got, want)
		}
	}
}
