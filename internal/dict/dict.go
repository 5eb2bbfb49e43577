// Package dict holds the optional ECU knowledge base. Discovery itself never
// guesses human names; a dictionary file supplied by the operator resolves
// logical addresses to module names and OEM hints.
package dict

import (
	"fmt"
	"strings"
)

// Entry names one logical ECU address.
type Entry struct {
	Address string
	Name    string
	OEM     string
}

// Store indexes knowledge-base entries by upper-cased logical address.
type Store struct {
	ecus map[string]Entry
}

// JSONFile is the on-disk shape of a knowledge base.
type JSONFile struct {
	ECUs []JSONEntry `json:"ecus"`
}

// JSONEntry is one address record in a knowledge-base file.
type JSONEntry struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	OEM     string `json:"oem,omitempty"`
}

// FromJSON validates and indexes a parsed knowledge-base file.
func FromJSON(file JSONFile) (*Store, error) {
	store := &Store{ecus: make(map[string]Entry)}
	for i, entry := range file.ECUs {
		address := strings.ToUpper(strings.TrimSpace(entry.Address))
		if address == "" {
			return nil, fmt.Errorf("ecus[%d]: empty address", i)
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("ecus[%d]: empty name", i)
		}
		if _, exists := store.ecus[address]; exists {
			return nil, fmt.Errorf("ecus[%d]: duplicate address %s", i, address)
		}
		store.ecus[address] = Entry{
			Address: address,
			Name:    name,
			OEM:     strings.TrimSpace(entry.OEM),
		}
	}
	return store, nil
}

// Lookup resolves a logical address to its knowledge-base entry.
func (s *Store) Lookup(address string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	entry, ok := s.ecus[strings.ToUpper(strings.TrimSpace(address))]
	return entry, ok
}

// IsEmpty reports whether the store carries no entries.
func (s *Store) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.ecus) == 0
}

// Len returns the number of known addresses.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ecus)
}
