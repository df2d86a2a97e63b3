// control/schema.go
// Author: momentics <momentics@gmail.com>

package control

// Config keys understood by the server facade.
const (
	KeyLogLevel       = "log.level"
	KeyMetricsEnabled = "metrics.enabled"
	KeyDebugEnabled   = "debug.enabled"
)

// EngineKey builds a per-engine key such as engine.recognizer.pollset_size.
func EngineKey(engine, field string) string {
	return "engine." + engine + "." + field
}

// Per-engine fields.
const (
	FieldPollSetSize    = "pollset_size"
	FieldQueueCapacity  = "queue_capacity"
	FieldRequestTimeout = "request_timeout_ms"
)

// ServerSchema constrains the keys above. Unknown keys are allowed.
const ServerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "log.level": {"enum": ["debug", "info", "warn", "error"]},
    "metrics.enabled": {"type": "boolean"},
    "debug.enabled": {"type": "boolean"}
  },
  "patternProperties": {
    "^engine\\.[a-z0-9_-]+\\.pollset_size$": {"type": "integer", "minimum": 1, "maximum": 65536},
    "^engine\\.[a-z0-9_-]+\\.queue_capacity$": {"type": "integer", "minimum": 1, "maximum": 1048576},
    "^engine\\.[a-z0-9_-]+\\.request_timeout_ms$": {"type": "integer", "minimum": 0}
  }
}`
