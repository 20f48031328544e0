package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
node:
  sender_id: "a3f91c42"
keys:
  - sender_id: "a3f91c42"
    key: "000102030405060708090a0b0c0d0e0f"
radio:
  kind: loopback
timing:
  discovery_interval_seconds: 5
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	id, err := cfg.SenderID()
	if err != nil || id != 0xa3f91c42 {
		t.Fatalf("SenderID = %#x, %v; want 0xa3f91c42, nil", id, err)
	}
	keys, err := cfg.ParsedKeys()
	if err != nil {
		t.Fatalf("ParsedKeys: %v", err)
	}
	if len(keys[0xa3f91c42]) != 16 {
		t.Fatalf("key length = %d, want 16", len(keys[0xa3f91c42]))
	}
	if cfg.DiscoveryInterval().Seconds() != 5 {
		t.Fatalf("DiscoveryInterval = %v, want 5s", cfg.DiscoveryInterval())
	}
}

func TestValidateRejectsMissingSenderID(t *testing.T) {
	var cfg Config
	cfg.Keys = []KeyEntry{{SenderID: "1", KeyHex: "00000000000000000000000000000000"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate = nil, want error for missing sender_id")
	}
}

func TestValidateRejectsNoKeys(t *testing.T) {
	var cfg Config
	cfg.Node.SenderID = "1"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate = nil, want error for empty keys")
	}
}

func TestEnvOverridesSenderIDAndKeys(t *testing.T) {
	t.Setenv("SLLL_SENDER_ID", "deadbeef")
	t.Setenv("SLLL_KEYS", "deadbeef:000102030405060708090a0b0c0d0e0f")

	var cfg Config
	if err := cfg.ApplyEnvOverrides(); err != nil {
		t.Fatalf("ApplyEnvOverrides: %v", err)
	}
	if cfg.Node.SenderID != "deadbeef" {
		t.Fatalf("Node.SenderID = %q, want \"deadbeef\"", cfg.Node.SenderID)
	}
	if len(cfg.Keys) != 1 || cfg.Keys[0].SenderID != "deadbeef" {
		t.Fatalf("Keys = %+v, want one entry for deadbeef", cfg.Keys)
	}
}

func TestEnvOverridesRejectMalformedKeysEntry(t *testing.T) {
	t.Setenv("SLLL_KEYS", "not-a-valid-entry")
	var cfg Config
	if err := cfg.ApplyEnvOverrides(); err == nil {
		t.Fatal("ApplyEnvOverrides = nil, want error for malformed SLLL_KEYS")
	}
}

func TestValidateRejectsBadRadioKind(t *testing.T) {
	var cfg Config
	cfg.Node.SenderID = "1"
	cfg.Keys = []KeyEntry{{SenderID: "1", KeyHex: "000102030405060708090a0b0c0d0e0f"}}
	cfg.Radio.Kind = "usb"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate = nil, want error for unknown radio.kind")
	}
}
