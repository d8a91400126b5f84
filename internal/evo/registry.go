package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

var (
	ErrOperatorExists   = errors.New("operator already registered")
	ErrOperatorNotFound = errors.New("operator not found")
)

// OperatorFactory binds an operator to a random source.
type OperatorFactory func(rng *rand.Rand) ProgramOperator

var operatorRegistry = struct {
	mu sync.RWMutex
	m  map[string]OperatorFactory
}{
	m: make(map[string]OperatorFactory),
}

func init() {
	initializeBuiltInOperators()
}

func initializeBuiltInOperators() {
	MustRegisterOperator("delete", func(rng *rand.Rand) ProgramOperator { return &DeleteInstruction{Rand: rng} })
	MustRegisterOperator("insert", func(rng *rand.Rand) ProgramOperator { return &InsertInstruction{Rand: rng} })
	MustRegisterOperator("mutate", func(rng *rand.Rand) ProgramOperator { return &FlipInstructionBit{Rand: rng} })
	MustRegisterOperator("swap", func(rng *rand.Rand) ProgramOperator { return &SwapInstructions{Rand: rng} })
}

func RegisterOperator(name string, factory OperatorFactory) error {
	if name == "" {
		return errors.New("operator name is required")
	}
	if factory == nil {
		return errors.New("operator factory is required")
	}

	operatorRegistry.mu.Lock()
	defer operatorRegistry.mu.Unlock()

	if _, exists := operatorRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperatorExists, name)
	}
	operatorRegistry.m[name] = factory
	return nil
}

func MustRegisterOperator(name string, factory OperatorFactory) {
	if err := RegisterOperator(name, factory); err != nil {
		panic(err)
	}
}

// ResolveOperator builds the named operator around rng.
func ResolveOperator(name string, rng *rand.Rand) (ProgramOperator, error) {
	operatorRegistry.mu.RLock()
	factory, ok := operatorRegistry.m[name]
	operatorRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperatorNotFound, name)
	}
	return factory(rng), nil
}

func ListOperators() []string {
	operatorRegistry.mu.RLock()
	defer operatorRegistry.mu.RUnlock()

	names := make([]string, 0, len(operatorRegistry.m))
	for name := range operatorRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetOperatorRegistryForTests() {
	operatorRegistry.mu.Lock()
	operatorRegistry.m = make(map[string]OperatorFactory)
	operatorRegistry.mu.Unlock()
	initializeBuiltInOperators()
}
