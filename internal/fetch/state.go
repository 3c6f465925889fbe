// Package fetch tracks a single logical remote resource through
// Idle -> Loading -> Success|Error.
package fetch

import "storefront-client/internal/apperr"

type Status string

const (
	Idle    Status = "idle"
	Loading Status = "loading"
	Success Status = "success"
	Error   Status = "error"
)

// State is a tagged union: Value is meaningful only in Success, Message and Kind only in Error.
type State[T any] struct {
	Status  Status      `json:"status"`
	Value   T           `json:"value"`
	Message string      `json:"error,omitempty"`
	Kind    apperr.Kind `json:"errorKind,omitempty"`
	Seq     uint64      `json:"-"`
}

func (s State[T]) Terminal() bool {
	return s.Status == Success || s.Status == Error
}

type eventKind int

const (
	evStart eventKind = iota
	evResolve
	evFail
)

// Event drives Transition. Build one with Start, Resolve or Fail.
type Event[T any] struct {
	kind  eventKind
	seq   uint64
	value T
	err   error
}

func Start[T any](seq uint64) Event[T] {
	return Event[T]{kind: evStart, seq: seq}
}

func Resolve[T any](seq uint64, value T) Event[T] {
	return Event[T]{kind: evResolve, seq: seq, value: value}
}

func Fail[T any](seq uint64, err error) Event[T] {
	return Event[T]{kind: evFail, seq: seq, err: err}
}

// Transition applies e to s. A resolution only commits when it belongs to the request
// currently loading; anything else (stale, duplicate, out of order) leaves s untouched.
// The bool reports whether s changed.
func Transition[T any](s State[T], e Event[T]) (State[T], bool) {
	switch e.kind {
	case evStart:
		if e.seq <= s.Seq {
			return s, false
		}
		// keep the previous value visible while reloading
		return State[T]{Status: Loading, Value: s.Value, Seq: e.seq}, true

	case evResolve:
		if s.Status != Loading || e.seq != s.Seq {
			return s, false
		}
		return State[T]{Status: Success, Value: e.value, Seq: e.seq}, true

	case evFail:
		if s.Status != Loading || e.seq != s.Seq {
			return s, false
		}
		norm := apperr.Normalize(e.err)
		if norm == nil {
			norm = apperr.New(apperr.KindServer, "request failed")
		}
		var zero T
		return State[T]{Status: Error, Value: zero, Message: norm.Message, Kind: norm.Kind, Seq: e.seq}, true
	}

	return s, false
}
