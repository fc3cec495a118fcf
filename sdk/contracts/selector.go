package contracts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Errors returned by port resolution.
var (
	// ErrPortNotFound is matched by every *PortNotFoundError.
	ErrPortNotFound = errors.New("MIDI port not found")

	// ErrVirtualUnsupported is returned by drivers that cannot create virtual ports.
	ErrVirtualUnsupported = errors.New("virtual ports are not supported by this driver")
)

// PortNotFoundError reports a selector that matched no port.
type PortNotFoundError struct {
	Direction string // "input" or "output"
	Selector  Selector
	Available []string
}

// Error implements the error interface.
func (e *PortNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %q (available: %s)",
		ErrPortNotFound.Error(), e.Direction, e.Selector.Pattern, strings.Join(e.Available, ", "))
}

// Is allows errors.Is to match PortNotFoundError with ErrPortNotFound.
func (e *PortNotFoundError) Is(target error) bool {
	return target == ErrPortNotFound
}

// Selector picks a port by name.
type Selector struct {
	// Pattern is a case-insensitive regular expression matched against port names.
	// An empty pattern matches every port.
	Pattern string `yaml:"pattern"`
	// Match selects the Nth matching port (0 = first).
	Match int `yaml:"match"`
	// Exclude lists case-insensitive substrings; ports containing any of them are skipped.
	Exclude []string `yaml:"exclude"`
	// Virtual asks the driver to create a port named Pattern instead of opening one.
	Virtual bool `yaml:"virtual"`
}

// Resolve returns the index in names of the port chosen by the selector.
func (s Selector) Resolve(direction string, names []string) (int, error) {
	re, err := regexp.Compile("(?i)" + s.Pattern)
	if err != nil {
		return -1, fmt.Errorf("invalid %s pattern %q: %w", direction, s.Pattern, err)
	}

	seen := 0
	for i, name := range names {
		if excluded(name, s.Exclude) || !re.MatchString(name) {
			continue
		}
		if seen == s.Match {
			return i, nil
		}
		seen++
	}
	return -1, &PortNotFoundError{Direction: direction, Selector: s, Available: names}
}

func excluded(name string, exclude []string) bool {
	lower := strings.ToLower(name)
	for _, ex := range exclude {
		if ex != "" && strings.Contains(lower, strings.ToLower(ex)) {
			return true
		}
	}
	return false
}

// Names extracts the port names of a device list.
func Names(devices []DeviceInfo) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}
