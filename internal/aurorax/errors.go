// Package aurorax holds small cross-cutting helpers shared by the core
// packages (error wrapping, non-deterministic housekeeping IDs).
package aurorax

import "fmt"

// Wrap wraps err with additional context, following the %w convention used
// throughout the core so callers can errors.Is/As through it.
func Wrap(err error, msg string) error {
	if err == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
