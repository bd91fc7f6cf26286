package catalogsync

import (
	"fmt"
	"strings"
)

// Store identifies one of the two synchronized catalog platforms
type Store string

const (
	StoreA Store = "storeA"
	StoreB Store = "storeB"
)

// AllStores returns both stores in a stable order
func AllStores() []Store {
	return []Store{StoreA, StoreB}
}

// ParseStore converts a wire name ("storeA"/"storeB") into a Store
func ParseStore(s string) (Store, error) {
	store := Store(s)
	if !store.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStore, s)
	}
	return store, nil
}

// StoreFromSlug converts a URL slug ("store-a"/"store-b") into a Store
func StoreFromSlug(slug string) (Store, error) {
	switch strings.ToLower(slug) {
	case "store-a":
		return StoreA, nil
	case "store-b":
		return StoreB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStore, slug)
	}
}

// IsValid returns true if the store is StoreA or StoreB
func (s Store) IsValid() bool {
	return s == StoreA || s == StoreB
}

// Other returns the opposite store. An invalid store yields an empty Store.
func (s Store) Other() Store {
	switch s {
	case StoreA:
		return StoreB
	case StoreB:
		return StoreA
	default:
		return ""
	}
}

// String returns the wire name
func (s Store) String() string {
	return string(s)
}

// IDField returns the name of the record field holding this store's product ID
func (s Store) IDField() string {
	return string(s) + "_id"
}

// Slug returns the URL path segment used for webhook routes
func (s Store) Slug() string {
	switch s {
	case StoreA:
		return "store-a"
	case StoreB:
		return "store-b"
	default:
		return ""
	}
}

// DisplayName returns a human-readable name
func (s Store) DisplayName() string {
	switch s {
	case StoreA:
		return "Store A"
	case StoreB:
		return "Store B"
	default:
		return string(s)
	}
}

// Direction is a source/target pair such as "storeA_to_storeB"
type Direction struct {
	Source Store
	Target Store
}

// ParseDirection parses "storeA_to_storeB" or "storeB_to_storeA"
func ParseDirection(s string) (Direction, error) {
	parts := strings.Split(s, "_to_")
	if len(parts) != 2 {
		return Direction{}, fmt.Errorf("%w: direction %q", ErrInvalidStore, s)
	}
	source, err := ParseStore(parts[0])
	if err != nil {
		return Direction{}, err
	}
	target, err := ParseStore(parts[1])
	if err != nil {
		return Direction{}, err
	}
	if source == target {
		return Direction{}, ErrSameStore
	}
	return Direction{Source: source, Target: target}, nil
}

// String returns the wire form of the direction
func (d Direction) String() string {
	return string(d.Source) + "_to_" + string(d.Target)
}
