package translate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/hexdbt/emu"
	"github.com/sarchlab/hexdbt/insts"
)

// Config holds the block formation policy and the translation switches.
type Config struct {
	// MaxPacketsPerBlock ends a block after this many packets.
	// Default: 32 packets.
	MaxPacketsPerBlock int `json:"max_packets_per_block"`

	// MaxInsnsPerBlock ends a block once this many real instructions have
	// been translated. Default: 128 instructions.
	MaxInsnsPerBlock int `json:"max_insns_per_block"`

	// PageSize is the guest page size blocks may not leave.
	// Default: 4096 bytes.
	PageSize uint32 `json:"page_size"`

	// ShortCircuit lets packets without hazards write canonical state
	// directly. Disabling it stages every packet. Default: true.
	ShortCircuit bool `json:"short_circuit"`

	// Debug enables the packet trace and runtime store width assertions.
	Debug bool `json:"debug"`
}

// DefaultConfig returns the default translation policy.
func DefaultConfig() *Config {
	return &Config{
		MaxPacketsPerBlock: 32,
		MaxInsnsPerBlock:   128,
		PageSize:           emu.DefaultPageSize,
		ShortCircuit:       true,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read translator config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse translator config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize translator config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write translator config file: %w", err)
	}

	return nil
}

// Validate checks the limits.
func (c *Config) Validate() error {
	if c.MaxPacketsPerBlock <= 0 {
		return fmt.Errorf("max_packets_per_block must be > 0")
	}
	if c.MaxInsnsPerBlock < insts.PacketWordsMax {
		return fmt.Errorf("max_insns_per_block must be >= %d", insts.PacketWordsMax)
	}
	if c.PageSize == 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("page_size must be a power of two")
	}
	if c.PageSize < 64 {
		return fmt.Errorf("page_size must be >= 64")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
