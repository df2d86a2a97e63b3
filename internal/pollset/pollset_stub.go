//go:build !linux && !darwin
// +build !linux,!darwin

// File: internal/pollset/pollset_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package pollset

import (
	"fmt"

	"github.com/momentics/mrcp-reactor/api"
)

// New returns an error for unsupported platforms.
func New(capacity int) (api.PollSet, error) {
	return nil, fmt.Errorf("pollset: %w on this platform", api.ErrNotSupported)
}
