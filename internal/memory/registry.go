package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrMatcherExists   = errors.New("matcher already registered")
	ErrMatcherNotFound = errors.New("matcher not found")
)

// Factory builds a fresh matcher. neighbours is only meaningful to matchers
// that rank a bounded number of labels.
type Factory func(neighbours int) Matcher

var matcherRegistry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: map[string]Factory{
		NameKNN: func(neighbours int) Matcher { return NewKNN(neighbours) },
		NameHTM: func(int) Matcher { return NewHTM() },
	},
}

var matcherAliases = map[string]string{
	"nearest":  NameKNN,
	"distance": NameKNN,
	"vote":     NameHTM,
	"overlap":  NameHTM,
}

func RegisterMatcher(name string, factory Factory) error {
	name = NormalizeName(name)
	if name == "" {
		return errors.New("matcher name is required")
	}
	if factory == nil {
		return errors.New("matcher factory is required")
	}

	matcherRegistry.mu.Lock()
	defer matcherRegistry.mu.Unlock()

	if _, exists := matcherRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrMatcherExists, name)
	}
	matcherRegistry.m[name] = factory
	return nil
}

func ResolveMatcher(name string, neighbours int) (Matcher, error) {
	normalized := NormalizeName(name)
	matcherRegistry.mu.RLock()
	factory, ok := matcherRegistry.m[normalized]
	matcherRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatcherNotFound, name)
	}
	return factory(neighbours), nil
}

func ListMatchers() []string {
	matcherRegistry.mu.RLock()
	defer matcherRegistry.mu.RUnlock()

	names := make([]string, 0, len(matcherRegistry.m))
	for n := range matcherRegistry.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NormalizeName canonicalizes matcher names and their aliases: "k-NN",
// " KNN " and "nearest" all resolve to "knn".
func NormalizeName(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	if canonical, ok := matcherAliases[normalized]; ok {
		return canonical
	}
	return normalized
}
