// Package identity validates device identities as advertised over BLE.
//
// Devices derive their identity from the radio MAC address: the prefix "id"
// followed by twelve uppercase hex digits, e.g. "id24A160E1B2C3". The same
// string is the device's advertised local name and its key in the cloud
// registry.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Identity format defaults.
const (
	// DefaultPrefix is the literal prefix of every identity.
	DefaultPrefix = "id"

	// DefaultLength is the total identity length, prefix included.
	DefaultLength = 14
)

// ErrFormat is returned for identities that do not match the format.
var ErrFormat = errors.New("invalid device identity")

// Format describes a valid identity: a literal prefix and a total length.
type Format struct {
	Prefix string `yaml:"prefix"`
	Length int    `yaml:"length"`
}

// DefaultFormat returns the format used by current device firmware.
func DefaultFormat() Format {
	return Format{Prefix: DefaultPrefix, Length: DefaultLength}
}

// Validate checks the format itself.
func (f Format) Validate() error {
	if f.Length <= len(f.Prefix) {
		return fmt.Errorf("identity length %d must exceed prefix %q", f.Length, f.Prefix)
	}
	return nil
}

// ID is a validated device identity.
type ID string

// Parse validates s against the format. Surrounding whitespace is trimmed;
// case is preserved since the identity must equal the advertised name.
func (f Format) Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, f.Prefix) {
		return "", fmt.Errorf("%w: must start with %q", ErrFormat, f.Prefix)
	}
	if len(s) != f.Length {
		return "", fmt.Errorf("%w: must be %d characters, got %d", ErrFormat, f.Length, len(s))
	}

	// Firmware reports an all-zero suffix when it could not read its MAC.
	if strings.Trim(s[len(f.Prefix):], "0") == "" {
		return "", fmt.Errorf("%w: unassigned identity %q", ErrFormat, s)
	}

	return ID(s), nil
}

// Parse validates s against DefaultFormat.
func Parse(s string) (ID, error) {
	return DefaultFormat().Parse(s)
}

// String returns the identity.
func (id ID) String() string {
	return string(id)
}

// Matches reports whether an advertised local name is this identity.
func (id ID) Matches(name string) bool {
	return name != "" && name == string(id)
}
