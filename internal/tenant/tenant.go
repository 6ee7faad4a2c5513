// Package tenant maps API keys to tenant identifiers. The registry is built
// once at startup from a JSON blob and never mutated afterwards, so it is
// safe for unsynchronized concurrent reads.
package tenant

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized marks a missing or unknown credential. Resolution happens
// before any other per-request work, so an unauthorized request has no side
// effects.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the resolved caller of a request. Admin identities carry no
// tenant: their uploads land directly under the output root and they may
// list any tenant's subtree.
type Identity struct {
	Tenant string
	Admin  bool
}

type Registry struct {
	byKey map[string]string
}

// ParseRegistry reads the tenant registry blob. Two entry shapes are
// accepted uniformly: a plain tenant string, or a record with a "tenant"
// field:
//
//	{"key-a": "acme", "key-b": {"tenant": "globex"}}
//
// A malformed blob or an unusable tenant identifier is a startup error; the
// process must refuse to run rather than serve with ambiguous auth.
func ParseRegistry(blob []byte) (*Registry, error) {
	reg := &Registry{byKey: make(map[string]string)}
	if len(strings.TrimSpace(string(blob))) == 0 {
		return reg, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("parse tenant registry: %w", err)
	}

	for key, entry := range raw {
		if strings.TrimSpace(key) == "" {
			return nil, errors.New("parse tenant registry: empty API key")
		}

		var name string
		if err := json.Unmarshal(entry, &name); err != nil {
			var record struct {
				Tenant string `json:"tenant"`
			}
			if err := json.Unmarshal(entry, &record); err != nil {
				return nil, fmt.Errorf("parse tenant registry entry for key %q: %w", key, err)
			}
			name = record.Tenant
		}

		if err := validateTenantID(name); err != nil {
			return nil, fmt.Errorf("tenant registry entry for key %q: %w", key, err)
		}
		reg.byKey[key] = name
	}

	return reg, nil
}

func (r *Registry) Len() int {
	return len(r.byKey)
}

// validateTenantID keeps tenant identifiers usable as a single path
// segment; they become directory names under the output root.
func validateTenantID(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("empty tenant identifier")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("tenant identifier %q contains unsafe characters", name)
		}
	}
	return nil
}

// Resolver authenticates request credentials against the registry and an
// optional admin shared secret.
type Resolver struct {
	registry   *Registry
	adminToken string
}

func NewResolver(registry *Registry, adminToken string) *Resolver {
	if registry == nil {
		registry = &Registry{byKey: map[string]string{}}
	}
	return &Resolver{registry: registry, adminToken: adminToken}
}

// Resolve returns the identity for an API key or admin token. Unknown or
// missing credentials fail with ErrUnauthorized.
func (r *Resolver) Resolve(key string) (Identity, error) {
	if key == "" {
		return Identity{}, ErrUnauthorized
	}

	if r.adminToken != "" && subtle.ConstantTimeCompare([]byte(key), []byte(r.adminToken)) == 1 {
		return Identity{Admin: true}, nil
	}

	if name, ok := r.registry.byKey[key]; ok {
		return Identity{Tenant: name}, nil
	}
	return Identity{}, ErrUnauthorized
}
