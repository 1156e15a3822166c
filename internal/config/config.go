// Package config loads and validates the YAML document that drives
// ab2ctl: the target to dial, the routing path and connection sizing
// for the CIP layer, and the vendor/serial identity the Connection
// Manager and PCCC layers embed in every request.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ab2link/ab2link/internal/epath"
	"github.com/ab2link/ab2link/internal/errors"
)

// Target identifies the PLC to connect to.
type Target struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Connection configures the CIP Connection Manager layer.
type Connection struct {
	// PathHex is the pre-encoded routing path as a hex string (e.g.
	// "01 01 00" for a single backplane/slot-0 hop). Mutually
	// exclusive with Slot.
	PathHex string `yaml:"path_hex,omitempty"`
	// Slot is a convenience for the common single-hop backplane case;
	// ignored if PathHex is set.
	Slot *uint8 `yaml:"slot,omitempty"`

	// CIPPayload is the requested maximum CIP payload in bytes,
	// 0 <= v <= 65525. v > 504 enables extended Forward Open.
	CIPPayload int `yaml:"cip_payload"`

	VendorID  uint16 `yaml:"vendor_id"`
	SerialNum uint32 `yaml:"serial_number"`

	// RetryCeiling bounds how many times the Forward Open state
	// machine may return Retry before the driver gives up.
	RetryCeiling int `yaml:"retry_ceiling"`

	// DH+ passthrough metadata, carried for diagnostics only.
	IsDHP   bool  `yaml:"is_dhp,omitempty"`
	DHPPort uint8 `yaml:"dhp_port,omitempty"`
	DHPDest uint8 `yaml:"dhp_dest,omitempty"`
}

// Logging configures the ambient logger.
type Logging struct {
	Level   string `yaml:"level"` // silent|error|info|verbose|debug
	LogFile string `yaml:"log_file,omitempty"`
}

// Config is the top-level document loaded from YAML.
type Config struct {
	Target     Target     `yaml:"target"`
	Connection Connection `yaml:"connection"`
	Logging    Logging    `yaml:"logging"`
}

// Default returns a Config with the same fallbacks the CIP layer
// applies internally (504-byte standard payload, retry ceiling 3,
// info-level logging), for use when no config file is supplied.
func Default() Config {
	return Config{
		Target: Target{Host: "127.0.0.1", Port: 44818},
		Connection: Connection{
			Slot:         uint8Ptr(0),
			CIPPayload:   504,
			VendorID:     0x1337,
			RetryCeiling: 3,
		},
		Logging: Logging{Level: "info"},
	}
}

func uint8Ptr(v uint8) *uint8 { return &v }

// Load reads and parses a YAML config file, then validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WrapConfigError(fmt.Errorf("read config: %w", err), path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.WrapConfigError(err, path)
	}
	return cfg, nil
}

// Validate checks field ranges the layer stack itself would
// otherwise reject deep inside Connect/ReserveSpace, surfacing them
// earlier with a user-friendly message.
func (c Config) Validate() error {
	if c.Target.Host == "" {
		return fmt.Errorf("target.host must not be empty")
	}
	if c.Target.Port <= 0 || c.Target.Port > 65535 {
		return fmt.Errorf("target.port %d out of range [1, 65535]", c.Target.Port)
	}
	if c.Connection.CIPPayload < 0 || c.Connection.CIPPayload > 65525 {
		return fmt.Errorf("connection.cip_payload %d out of range [0, 65525]", c.Connection.CIPPayload)
	}
	if c.Connection.PathHex == "" && c.Connection.Slot == nil {
		return fmt.Errorf("connection.path_hex or connection.slot must be set")
	}
	if c.Connection.RetryCeiling < 0 {
		return fmt.Errorf("connection.retry_ceiling must not be negative")
	}
	switch c.Logging.Level {
	case "", "silent", "error", "info", "verbose", "debug":
	default:
		return fmt.Errorf("logging.level %q is not one of silent|error|info|verbose|debug", c.Logging.Level)
	}
	if _, err := c.Connection.EncodedPath(); err != nil {
		return err
	}
	return nil
}

// EncodedPath resolves the connection's routing path to the
// pre-encoded bytes the CIP layer's Config.EncodedPath expects:
// PathHex if set (whitespace-separated hex bytes), else a single
// backplane/Slot hop.
func (c Connection) EncodedPath() ([]byte, error) {
	if c.PathHex != "" {
		clean := strings.ReplaceAll(strings.TrimSpace(c.PathHex), " ", "")
		b, err := hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("connection.path_hex %q: %w", c.PathHex, err)
		}
		return b, nil
	}
	if c.Slot != nil {
		return epath.EncodeBackplane(*c.Slot), nil
	}
	return nil, fmt.Errorf("connection.path_hex or connection.slot must be set")
}
