// Package idgen produces the string identifiers used across goosd: subscriber
// handles on the broadcast hub and event IDs in the observability log.
// The strategy is injectable so tests can substitute deterministic IDs.
package idgen

import (
	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings:
// time-sortable and globally unique, so identifiers order naturally in logs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID,
// scoping identifiers by type (e.g. "sub_", "evt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the module-wide default generator.
var Default Generator = UUIDv7()
