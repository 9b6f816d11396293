package emu

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// TLBConfig holds the geometry of the page lookup TLB.
type TLBConfig struct {
	// Sets is the number of sets.
	Sets int
	// Ways is the associativity.
	Ways int
}

// DefaultTLBConfig returns a 64-entry, 4-way TLB.
func DefaultTLBConfig() TLBConfig {
	return TLBConfig{
		Sets: 16,
		Ways: 4,
	}
}

// TLBStats holds TLB statistics.
type TLBStats struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Flushes   uint64
}

// TLB caches page table lookups using an Akita cache directory. Tags are
// page base addresses; the page each valid block maps to is kept in a side
// table indexed by (setID * ways + wayID).
type TLB struct {
	config    TLBConfig
	directory *akitacache.DirectoryImpl
	entries   []*page
	stats     TLBStats
}

// NewTLB creates a TLB for the given page size.
func NewTLB(config TLBConfig, pageSize uint32) *TLB {
	return &TLB{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			int(pageSize),
			akitacache.NewLRUVictimFinder(),
		),
		entries: make([]*page, config.Sets*config.Ways),
	}
}

// Stats returns TLB statistics.
func (t *TLB) Stats() TLBStats {
	return t.stats
}

func (t *TLB) entryIndex(block *akitacache.Block) int {
	return block.SetID*t.config.Ways + block.WayID
}

func (t *TLB) lookup(base uint32) (*page, bool) {
	t.stats.Lookups++

	block := t.directory.Lookup(0, uint64(base))
	if block == nil || !block.IsValid {
		t.stats.Misses++
		return nil, false
	}

	t.stats.Hits++
	t.directory.Visit(block)

	return t.entries[t.entryIndex(block)], true
}

func (t *TLB) fill(base uint32, p *page) {
	victim := t.directory.FindVictim(uint64(base))
	if victim == nil {
		return
	}

	if victim.IsValid {
		t.stats.Evictions++
	}

	victim.Tag = uint64(base)
	victim.IsValid = true
	victim.IsDirty = false
	t.entries[t.entryIndex(victim)] = p
	t.directory.Visit(victim)
}

// flush drops every cached translation. Called whenever the page table
// changes.
func (t *TLB) flush() {
	t.stats.Flushes++
	t.directory.Reset()
	for i := range t.entries {
		t.entries[i] = nil
	}
}
