// Package authz maps API keys to roles and decides which roles may run which actions.
package authz

import (
	"context"
	"fmt"
	"strings"

	"hotel_pricing/internal/domain"
)

// Gate is an in-memory key registry. Immutable after New.
type Gate struct {
	keys        map[string]domain.Principal
	importRoles map[string]bool
}

// ParseKeys reads "key:role,key:role". Whitespace around entries is ignored.
func ParseKeys(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, role, ok := strings.Cut(entry, ":")
		key, role = strings.TrimSpace(key), strings.ToLower(strings.TrimSpace(role))
		if !ok || key == "" || role == "" {
			return nil, fmt.Errorf("authz: malformed key entry %q (want key:role)", mask(key))
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("authz: key %s listed twice", mask(key))
		}
		out[key] = role
	}
	return out, nil
}

func New(keys map[string]string, importRoles []string) *Gate {
	g := &Gate{keys: make(map[string]domain.Principal, len(keys)), importRoles: map[string]bool{}}
	for k, role := range keys {
		g.keys[k] = domain.Principal{Name: mask(k), Role: role}
	}
	for _, r := range importRoles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			g.importRoles[r] = true
		}
	}
	return g
}

// Identify resolves an API key to its principal.
func (g *Gate) Identify(apiKey string) (domain.Principal, bool) {
	p, ok := g.keys[strings.TrimSpace(apiKey)]
	return p, ok
}

// Allow: any known role may read pricing; importing needs one of the import roles.
func (g *Gate) Allow(_ context.Context, p domain.Principal, a domain.Action) bool {
	if p.Role == "" {
		return false
	}
	switch a {
	case domain.ActionReadPricing:
		return true
	case domain.ActionImportPricing:
		return g.importRoles[p.Role]
	}
	return false
}

// mask keeps enough of a key to tell keys apart in logs.
func mask(k string) string {
	if len(k) <= 4 {
		return "****"
	}
	return k[:4] + "****"
}
