// Package credentials resolves named logins for the credentials resource.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/openapi-seeker/internal/config"
)

// ErrNotFound is returned when no credentials exist under a name.
var ErrNotFound = errors.New("credentials not found")

// Credentials is a username and password pair.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store looks credentials up by name.
type Store interface {
	Lookup(name string) (Credentials, error)
}

// Resolver reads configuration keys that were not known when the
// configuration was loaded. *viper.Viper satisfies it, so with AutomaticEnv a
// name resolves from <PREFIX>_CREDENTIALS_<NAME>_USERNAME and _PASSWORD.
type Resolver interface {
	IsSet(key string) bool
	GetString(key string) string
}

// Static serves credentials from configuration, falling back to a Resolver
// for names that only exist in the environment.
type Static struct {
	entries  map[string]Credentials
	fallback Resolver
}

var _ Store = (*Static)(nil)

// NewStatic builds a Static store. Names are matched case-insensitively.
// fallback may be nil.
func NewStatic(entries map[string]config.CredentialConfig, fallback Resolver) *Static {
	s := &Static{
		entries:  make(map[string]Credentials, len(entries)),
		fallback: fallback,
	}
	for name, c := range entries {
		s.entries[strings.ToLower(name)] = Credentials{Username: c.Username, Password: c.Password}
	}
	return s
}

// Lookup implements Store.
func (s *Static) Lookup(name string) (Credentials, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Credentials{}, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	if c, ok := s.entries[key]; ok {
		return c, nil
	}

	if s.fallback != nil && !strings.ContainsAny(key, ". ") {
		userKey := "credentials." + key + ".username"
		passKey := "credentials." + key + ".password"
		if s.fallback.IsSet(userKey) || s.fallback.IsSet(passKey) {
			return Credentials{
				Username: s.fallback.GetString(userKey),
				Password: s.fallback.GetString(passKey),
			}, nil
		}
	}
	return Credentials{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}
