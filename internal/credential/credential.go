// Package credential models where a collaborator API key comes from.
package credential

import (
	"errors"
	"os"
	"strings"
)

var ErrMissing = errors.New("missing api credential")

type Source int

const (
	None Source = iota
	UserSupplied
	PlatformManaged
)

func (s Source) String() string {
	switch s {
	case UserSupplied:
		return "user"
	case PlatformManaged:
		return "platform"
	default:
		return "none"
	}
}

// Credential is either a key the user typed or a request to use the key the
// platform provides. The zero value is None.
type Credential struct {
	source Source
	key    string
}

func User(key string) Credential {
	key = strings.TrimSpace(key)
	if key == "" {
		return Credential{}
	}
	return Credential{source: UserSupplied, key: key}
}

func Platform() Credential {
	return Credential{source: PlatformManaged}
}

func (c Credential) Source() Source { return c.source }

func (c Credential) IsZero() bool { return c.source == None }

// Resolver turns a Credential into a concrete key.
type Resolver struct {
	PlatformKey string
}

// FromEnv reads the platform key from GEMINI_API_KEY, then API_KEY.
func FromEnv() Resolver {
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return Resolver{PlatformKey: v}
		}
	}
	return Resolver{}
}

func (r Resolver) Available() bool { return strings.TrimSpace(r.PlatformKey) != "" }

func (r Resolver) Resolve(c Credential) (string, error) {
	var key string
	switch c.source {
	case UserSupplied:
		key = c.key
	case PlatformManaged:
		key = strings.TrimSpace(r.PlatformKey)
	}
	if key == "" {
		return "", ErrMissing
	}
	return key, nil
}
