// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with schema validation and reload
// propagation.

package control

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
// When a schema is attached, every update is validated against the merged
// result and rejected as a whole if it does not conform.
type ConfigStore struct {
	mu     sync.RWMutex
	config map[string]any
	schema *jsonschema.Schema
	hooks  reloadHooks
}

// NewConfigStore initializes a new config store with empty data and no schema.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config: make(map[string]any),
	}
}

// NewValidatedConfigStore creates a store that validates updates against
// the given JSON schema document.
func NewValidatedConfigStore(schemaJSON string) (*ConfigStore, error) {
	schema, err := CompileSchema(schemaJSON)
	if err != nil {
		return nil, err
	}
	cs := NewConfigStore()
	cs.schema = schema
	return cs, nil
}

// CompileSchema compiles an in-memory JSON schema document.
func CompileSchema(schemaJSON string) (*jsonschema.Schema, error) {
	const url = "mem://control/config.schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cloneMap(cs.config)
}

// Get returns a single value.
func (cs *ConfigStore) Get(key string) (any, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	v, ok := cs.config[key]
	return v, ok
}

// SetConfig merges new values and dispatches reload. An update that would
// leave the store violating its schema is rejected and nothing changes.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) error {
	cs.mu.Lock()
	merged := cloneMap(cs.config)
	for k, v := range newCfg {
		merged[k] = v
	}
	if cs.schema != nil {
		if err := validate(cs.schema, merged); err != nil {
			cs.mu.Unlock()
			return fmt.Errorf("config rejected: %w", err)
		}
	}
	cs.config = merged
	cs.mu.Unlock()

	cs.hooks.trigger()
	return nil
}

// OnReload registers a listener hook called on accepted config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.hooks.register(fn)
}

// validate checks values the way they would look once serialized, so Go
// integer and float kinds compare the same as decoded JSON numbers.
func validate(schema *jsonschema.Schema, cfg map[string]any) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	return schema.Validate(payload)
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
