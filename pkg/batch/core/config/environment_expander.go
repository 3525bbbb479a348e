package config

import (
	"os"
	"strings"
)

// EnvironmentExpander expands environment placeholders in raw configuration bytes
// before they are parsed.
type EnvironmentExpander interface {
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands $VAR and ${VAR} from the process environment.
// ${VAR:-fallback} yields fallback when VAR is unset or empty, and ${VAR-fallback}
// only when VAR is unset. Unset variables without a fallback expand to "".
type OsEnvironmentExpander struct {
	lookup func(string) (string, bool)
}

// NewOsEnvironmentExpander creates an OsEnvironmentExpander reading os.LookupEnv.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{lookup: os.LookupEnv}
}

// Expand never fails; the error is part of the EnvironmentExpander contract.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return []byte(os.Expand(string(input), func(placeholder string) string {
		return resolvePlaceholder(placeholder, lookup)
	})), nil
}

func resolvePlaceholder(placeholder string, lookup func(string) (string, bool)) string {
	if name, fallback, ok := strings.Cut(placeholder, ":-"); ok {
		if v, set := lookup(name); set && v != "" {
			return v
		}
		return fallback
	}
	if name, fallback, ok := strings.Cut(placeholder, "-"); ok && validEnvName(name) {
		if v, set := lookup(name); set {
			return v
		}
		return fallback
	}
	v, _ := lookup(placeholder)
	return v
}

func validEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
