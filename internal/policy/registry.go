package policy

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registry = make(map[string]Evaluator)
	mu       sync.RWMutex
)

// Register adds an evaluator under its type tag. Tags are stored lowercased
// so lookups are case-insensitive. Registering two evaluators for the same
// tag is a programming error.
func Register(e Evaluator) {
	mu.Lock()
	defer mu.Unlock()
	tag := strings.ToLower(e.Type())
	if tag == "" {
		panic("policy: evaluator has empty type tag")
	}
	if _, exists := registry[tag]; exists {
		panic(fmt.Sprintf("policy: evaluator %s already registered", tag))
	}
	registry[tag] = e
}

// Lookup resolves a configured policy type to its evaluator. The match is
// case-insensitive; a missing evaluator is not an error at this level.
func Lookup(typeTag string) (Evaluator, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[strings.ToLower(strings.TrimSpace(typeTag))]
	return e, ok
}

// List returns all registered evaluators sorted by type tag.
func List() []Evaluator {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Evaluator, 0, len(registry))
	for _, e := range registry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Type()) < strings.ToLower(out[j].Type())
	})
	return out
}
