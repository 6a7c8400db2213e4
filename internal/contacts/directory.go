// Package contacts resolves a normalized team identifier to the WhatsApp
// number its messages should be delivered to.
package contacts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/iago/ponto-whatsapp-back/internal/domain"
)

// Directory maps a normalized team to a delivery number. Resolve reports
// ok=false when no usable mapping exists.
type Directory interface {
	Resolve(team string) (string, bool)
}

// StaticDirectory is an in-memory Directory, used in tests and as the
// fallback when no contacts file is configured.
type StaticDirectory struct {
	numbers map[string]string
}

func NewStaticDirectory(numbers map[string]string) *StaticDirectory {
	normalized := make(map[string]string, len(numbers))
	for team, number := range numbers {
		normalized[domain.NormalizeTeam(team)] = number
	}
	return &StaticDirectory{numbers: normalized}
}

func (d *StaticDirectory) Resolve(team string) (string, bool) {
	number, ok := d.numbers[domain.NormalizeTeam(team)]
	if !ok || !usableNumber(number) {
		return "", false
	}
	return strings.TrimSpace(number), true
}

// LoadFileDirectory reads a JSON object of team -> number from disk.
func LoadFileDirectory(path string) (*StaticDirectory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contacts file: %w", err)
	}
	var numbers map[string]string
	if err := json.Unmarshal(raw, &numbers); err != nil {
		return nil, fmt.Errorf("parse contacts file %s: %w", path, err)
	}
	return NewStaticDirectory(numbers), nil
}

// usableNumber filters out blank and placeholder values exported by the
// spreadsheet the mapping originates from.
func usableNumber(number string) bool {
	switch strings.ToLower(strings.TrimSpace(number)) {
	case "", "nan", "none":
		return false
	}
	return true
}

// RunCache wraps a Directory so each distinct team is resolved at most once
// per dispatch run.
type RunCache struct {
	base Directory

	mu      sync.Mutex
	entries map[string]cachedNumber
}

type cachedNumber struct {
	number string
	ok     bool
}

func NewRunCache(base Directory) *RunCache {
	return &RunCache{
		base:    base,
		entries: make(map[string]cachedNumber),
	}
}

func (c *RunCache) Resolve(team string) (string, bool) {
	normalized := domain.NormalizeTeam(team)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[normalized]; ok {
		return entry.number, entry.ok
	}
	number, ok := c.base.Resolve(normalized)
	c.entries[normalized] = cachedNumber{number: number, ok: ok}
	return number, ok
}
