// File: api/control.go
// Package api defines the Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control manages dynamic config and runtime metrics.
type Control interface {
	GetConfig() map[string]any
	// SetConfig merges cfg; a rejected update leaves the config unchanged.
	SetConfig(cfg map[string]any) error
	Stats() map[string]any
	OnReload(fn func())
	SetMetric(key string, value any)
	PublishMetrics(prefix string, m map[string]any)
	RegisterDebugProbe(name string, fn func() any)
}
