// File: engine/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"fmt"
	"time"
)

// Kind names the resource an engine serves.
type Kind string

const (
	KindRecognizer  Kind = "recognizer"
	KindSynthesizer Kind = "synthesizer"
)

// Method is a channel request method.
type Method int

const (
	// MethodStart begins a request (RECOGNIZE / SPEAK) and arms its timer.
	MethodStart Method = iota + 1
	// MethodInput reports activity on the in-progress request. A final
	// input completes it.
	MethodInput
	// MethodStop cancels the in-progress request, if any.
	MethodStop
)

func (m Method) String() string {
	switch m {
	case MethodStart:
		return "START"
	case MethodInput:
		return "INPUT"
	case MethodStop:
		return "STOP"
	default:
		return fmt.Sprintf("METHOD(%d)", int(m))
	}
}

// Request is one channel request.
type Request struct {
	ID      uint64
	Method  Method
	Timeout time.Duration // START only; zero selects the engine default
	Final   bool          // INPUT only
}

// Status is the immediate answer to a request.
type Status int

const (
	StatusComplete Status = iota
	StatusInProgress
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "COMPLETE"
	case StatusInProgress:
		return "IN-PROGRESS"
	default:
		return "FAILED"
	}
}

// Cause tells why an in-progress request completed.
type Cause string

const (
	CauseSuccess Cause = "success"
	CauseTimeout Cause = "timeout"
	CauseStopped Cause = "stopped"
)

// Responder receives engine answers. Methods are called on the engine's
// reactor goroutine and must not block.
type Responder interface {
	ChannelOpened(channel string, ok bool)
	ChannelClosed(channel string)
	Response(channel string, req Request, status Status)
	Complete(channel string, requestID uint64, cause Cause)
}
