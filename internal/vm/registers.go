package vm

import (
	"sync"

	"tpg/internal/instruction"
)

// RegisterSize is the length of every register bank.
const RegisterSize = instruction.RegisterCount

// Registers is one learner's working memory.
type Registers []float64

// NewRegisters returns an all-zero bank.
func NewRegisters() Registers {
	return make(Registers, RegisterSize)
}

// Reset zeroes every register in place.
func (r Registers) Reset() {
	for i := range r {
		r[i] = 0
	}
}

// RegisterStore maps learner identity to its register bank for one execution
// context, for example one team-evaluation episode. Lookups are safe for
// concurrent use; a single bank must not be executed against concurrently.
type RegisterStore struct {
	mu    sync.Mutex
	banks map[int64]Registers
}

// NewRegisterStore returns an empty store.
func NewRegisterStore() *RegisterStore {
	return &RegisterStore{banks: make(map[int64]Registers)}
}

// Bank returns the bank for id, creating a zeroed one on first use.
func (s *RegisterStore) Bank(id int64) Registers {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.banks == nil {
		s.banks = make(map[int64]Registers)
	}
	bank, ok := s.banks[id]
	if !ok {
		bank = NewRegisters()
		s.banks[id] = bank
	}
	return bank
}

// Lookup returns the bank for id without creating it.
func (s *RegisterStore) Lookup(id int64) (Registers, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bank, ok := s.banks[id]
	return bank, ok
}

// Snapshot copies the bank for id.
func (s *RegisterStore) Snapshot(id int64) (Registers, bool) {
	bank, ok := s.Lookup(id)
	if !ok {
		return nil, false
	}
	return append(Registers(nil), bank...), true
}

func (s *RegisterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.banks)
}

// Reset drops every bank, starting a new episode.
func (s *RegisterStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks = make(map[int64]Registers)
}
