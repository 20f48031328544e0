// Package config loads SLLL node configuration from a YAML file,
// generalizing the teacher's cmd/agsys-controller Config struct (same
// yaml-tagged nested sections, same hex-AES-key decoding discipline)
// to SLLL's node/radio/store sections, with environment variable
// overrides layered on top per spec.md §6's SENDER_ID/KEYS
// configuration surface.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level node configuration file shape.
type Config struct {
	Node struct {
		SenderID string `yaml:"sender_id"` // hex, e.g. "a3f91c42"
	} `yaml:"node"`

	Keys []KeyEntry `yaml:"keys"`

	Radio struct {
		Kind            string   `yaml:"kind"` // "loopback" | "ipc"
		PublishEndpoint string   `yaml:"publish_endpoint"`
		PeerEndpoints   []string `yaml:"peer_endpoints"`
		Frequency       uint32   `yaml:"frequency"`
		SpreadingFactor uint8    `yaml:"spreading_factor"`
		Bandwidth       uint32   `yaml:"bandwidth"`
		CodingRate      uint8    `yaml:"coding_rate"`
		TxPower         int8     `yaml:"tx_power"`
		SyncWord        uint8    `yaml:"sync_word"`
	} `yaml:"radio"`

	Store struct {
		Path string `yaml:"path"` // empty disables persistence
	} `yaml:"store"`

	Timing struct {
		DiscoveryIntervalSeconds int `yaml:"discovery_interval_seconds"`
	} `yaml:"timing"`

	Logging struct {
		Debug bool `yaml:"debug"`
	} `yaml:"logging"`
}

// Load reads and parses the YAML config file at path, then layers
// environment overrides on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// KeyEntry is one sender-id/key pairing as it appears in the YAML
// keys list or the SLLL_KEYS environment variable.
type KeyEntry struct {
	SenderID string `yaml:"sender_id"`
	KeyHex   string `yaml:"key"`
}

// SenderID parses Node.SenderID as a 32-bit hex integer.
func (c *Config) SenderID() (uint32, error) {
	return parseHexUint32(c.Node.SenderID)
}

// DiscoveryInterval returns Timing.DiscoveryIntervalSeconds as a
// Duration, or 0 if unset (callers should apply their own default).
func (c *Config) DiscoveryInterval() time.Duration {
	if c.Timing.DiscoveryIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Timing.DiscoveryIntervalSeconds) * time.Second
}

// ParsedKeys decodes every KeyEntry into a sender id and raw key
// bytes, rejecting malformed entries at startup per spec.md §6.
func (c *Config) ParsedKeys() (map[uint32][]byte, error) {
	out := make(map[uint32][]byte, len(c.Keys))
	for _, e := range c.Keys {
		id, err := parseHexUint32(e.SenderID)
		if err != nil {
			return nil, fmt.Errorf("config: key entry sender_id %q: %w", e.SenderID, err)
		}
		key, err := hex.DecodeString(e.KeyHex)
		if err != nil {
			return nil, fmt.Errorf("config: key entry %q: invalid hex key: %w", e.SenderID, err)
		}
		out[id] = key
	}
	return out, nil
}

// ApplyEnvOverrides layers SLLL_SENDER_ID and SLLL_KEYS over values
// read from the YAML file. SLLL_SENDER_ID is a hex uint32. SLLL_KEYS
// is a comma-separated list of "id_hex:key_hex" pairs, appended to
// (not replacing) any keys already loaded from the file.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("SLLL_SENDER_ID"); v != "" {
		c.Node.SenderID = v
	}

	if v := os.Getenv("SLLL_KEYS"); v != "" {
		for _, pair := range strings.Split(v, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			parts := strings.SplitN(pair, ":", 2)
			if len(parts) != 2 {
				return fmt.Errorf("config: malformed SLLL_KEYS entry %q, want id_hex:key_hex", pair)
			}
			c.Keys = append(c.Keys, KeyEntry{SenderID: parts[0], KeyHex: parts[1]})
		}
	}
	return nil
}

// Validate checks that the fields required to start a node are
// present and well formed, failing fast at startup rather than
// partway through construction.
func (c *Config) Validate() error {
	if c.Node.SenderID == "" {
		return fmt.Errorf("config: node.sender_id (or SLLL_SENDER_ID) is required")
	}
	if _, err := c.SenderID(); err != nil {
		return fmt.Errorf("config: node.sender_id: %w", err)
	}
	if len(c.Keys) == 0 {
		return fmt.Errorf("config: at least one entry in keys (or SLLL_KEYS) is required")
	}
	if _, err := c.ParsedKeys(); err != nil {
		return err
	}
	switch c.Radio.Kind {
	case "", "loopback", "ipc":
	default:
		return fmt.Errorf("config: radio.kind %q not one of loopback|ipc", c.Radio.Kind)
	}
	return nil
}

func parseHexUint32(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("not a 32-bit hex integer: %w", err)
	}
	return uint32(v), nil
}
