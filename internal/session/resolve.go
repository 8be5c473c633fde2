package session

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/matheus3301/wppbot/internal/config"
)

const DefaultSessionName = "main"

// ErrInvalidName is returned for names that cannot be used as a directory.
var ErrInvalidName = errors.New("invalid session name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is 1-64 characters of [a-z0-9_-].
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: must match %s", ErrInvalidName, name, nameRegexp)
	}
	return nil
}

// Resolve picks the active session name, in order: the --session flag, the
// config's default_session, "main". The result is validated.
func Resolve(flagOverride string, cfg *config.Config) (string, error) {
	name := flagOverride
	if name == "" && cfg != nil {
		name = cfg.DefaultSession
	}
	if name == "" {
		name = DefaultSessionName
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
