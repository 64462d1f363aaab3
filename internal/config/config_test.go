package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proofflow.yaml")
	content := `server:
  address: ":9090"
consensus:
  driver: evm
  chain: sepolia
  sink_address: "0x000000000000000000000000000000000000dEaD"
credential:
  driver: memory
  explorer_url_template: "https://hashscan.io/testnet/transaction/{tx}"
web3:
  chain_config: chain.yaml
runtime:
  data_dir: state
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" || cfg.Server.RateLimitPerMinute != 100 {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Consensus.Driver != "evm" || cfg.Consensus.Chain != "sepolia" {
		t.Fatalf("unexpected consensus config %+v", cfg.Consensus)
	}
	if cfg.Credential.MaxAttempts != 3 || cfg.Credential.BaseDelayMS != 2000 || cfg.Credential.Amount != 1 {
		t.Fatalf("credential defaults not applied: %+v", cfg.Credential)
	}
	if cfg.Web3.ChainConfig != filepath.Join(dir, "chain.yaml") {
		t.Fatalf("chain config not resolved: %s", cfg.Web3.ChainConfig)
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "state") {
		t.Fatalf("data dir not resolved: %s", cfg.Runtime.DataDir)
	}
	if cfg.Snapshot.Driver != "file" || cfg.Queue.Driver != "memory" || cfg.Queue.Workers != 4 {
		t.Fatalf("unexpected storage defaults %+v %+v", cfg.Snapshot, cfg.Queue)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proofflow.json")
	content := `{"llm":{"provider":"openai","openai":{"api_key_env":"TEST_PROOFFLOW_KEY","model":"gpt-4o"}},"logging":{"audit":{"enabled":true}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TEST_PROOFFLOW_KEY", " sk-test ")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.OpenAI.Model != "gpt-4o" || cfg.LLM.OpenAI.TimeoutSeconds != 60 {
		t.Fatalf("unexpected llm config %+v", cfg.LLM.OpenAI)
	}
	if got := cfg.LLM.OpenAI.ResolveAPIKey(); got != "sk-test" {
		t.Fatalf("unexpected api key %q", got)
	}
	if cfg.Logging.Audit.Path != filepath.Join(dir, "data", "audit.log") {
		t.Fatalf("unexpected audit path %s", cfg.Logging.Audit.Path)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, found, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatalf("missing file reported as found")
	}
	if cfg.Server.Address != ":8080" || cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, _, err := LoadOrDefault(path); err == nil {
		t.Fatalf("parse errors must not fall back to defaults")
	}
}
