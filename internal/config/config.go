// Package config loads and validates simulation run configuration.
//
// Run files are YAML, validated against an embedded CUE schema before
// decoding so malformed configs fail with field-level errors instead of
// partially-applied defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/verayang01/clocksim/internal/node"
)

// Defaults applied by Normalize. The tick-rate range and weights mirror
// the classic three-machine setup: speeds drawn from 1..6 cycles/sec and
// a 1-in-10 chance each of a directed send and a broadcast.
const (
	DefaultDuration        = 60 * time.Second
	DefaultStartupDeadline = 10 * time.Second
	DefaultTickMin         = 1
	DefaultTickMax         = 6
	DefaultAddr            = "127.0.0.1:0"
)

// Duration wraps time.Duration so YAML can carry it as a string.
type Duration time.Duration

// UnmarshalYAML parses Go duration syntax ("60s", "1m30s").
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration back to Go syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// NodeSpec describes one simulated node. Addr is the TCP listen address;
// when empty, a loopback address with an ephemeral port is used and peers
// learn the bound address at wiring time.
type NodeSpec struct {
	ID   string `yaml:"id"`
	Addr string `yaml:"addr,omitempty"`
}

// TickRange is the inclusive range a node's fixed tick rate is drawn from.
type TickRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Config is a full run configuration.
type Config struct {
	Duration        Duration     `yaml:"duration,omitempty"`
	StartupDeadline Duration     `yaml:"startup_deadline,omitempty"`
	Seed            int64        `yaml:"seed,omitempty"`
	TickRate        TickRange    `yaml:"tick_rate,omitempty"`
	Weights         node.Weights `yaml:"weights,omitempty"`
	Nodes           []NodeSpec   `yaml:"nodes"`
}

// Load reads, schema-validates, decodes, and normalizes a run file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and canonicalizes node IDs, then checks the
// cross-field constraints the schema cannot express.
func (c *Config) Normalize() error {
	if c.Duration == 0 {
		c.Duration = Duration(DefaultDuration)
	}
	if c.StartupDeadline == 0 {
		c.StartupDeadline = Duration(DefaultStartupDeadline)
	}
	if c.TickRate.Min == 0 && c.TickRate.Max == 0 {
		c.TickRate = TickRange{Min: DefaultTickMin, Max: DefaultTickMax}
	}
	if c.TickRate.Max < c.TickRate.Min {
		return fmt.Errorf("tick_rate: max (%d) below min (%d)", c.TickRate.Max, c.TickRate.Min)
	}
	if (c.Weights == node.Weights{}) {
		c.Weights = node.DefaultWeights(len(c.Nodes) - 1)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}

	// Node IDs are compared byte-wise everywhere (mailbox routing, log
	// queries), so visually identical IDs must be byte-identical too.
	seen := make(map[string]bool, len(c.Nodes))
	for i := range c.Nodes {
		id := norm.NFC.String(c.Nodes[i].ID)
		if seen[id] {
			return fmt.Errorf("duplicate node id %q", id)
		}
		seen[id] = true
		c.Nodes[i].ID = id
		if c.Nodes[i].Addr == "" {
			c.Nodes[i].Addr = DefaultAddr
		}
	}
	return nil
}

// IDs returns the configured node IDs in declaration order.
func (c *Config) IDs() []string {
	ids := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		ids[i] = n.ID
	}
	return ids
}
