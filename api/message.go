// File: api/message.go
// Package api defines control messages exchanged with task goroutines.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// MessageType separates task-internal messages from user payloads.
type MessageType int

const (
	// MessageCore carries lifecycle requests handled by the task itself.
	MessageCore MessageType = iota
	// MessageUser carries caller payloads routed to the process hook.
	MessageUser
)

func (t MessageType) String() string {
	switch t {
	case MessageCore:
		return "core"
	case MessageUser:
		return "user"
	default:
		return "unknown"
	}
}

// Core message sub types.
const (
	CoreTerminateRequest = iota + 1
)

// Message is an opaque unit of cross-goroutine work posted into a task.
// Messages are taken from the task's pool and returned to it once processed.
type Message struct {
	Type    MessageType
	SubType int // discriminator tag, meaning owned by the sender
	Data    any
}

// Reset clears the message before it goes back to a pool.
func (m *Message) Reset() {
	m.Type = MessageUser
	m.SubType = 0
	m.Data = nil
}

// ProcessFunc handles one user message on the task goroutine. A non-nil
// return ends the task's run loop; return ErrStop for an orderly stop.
type ProcessFunc func(msg *Message) error
