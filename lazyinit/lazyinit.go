// Package lazyinit is an initialise-once value with an observable state.
package lazyinit

import (
	"sync"
	"sync/atomic"
)

// State of a Value
type State int32

const (
	Uninitialized State = iota
	Building
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Building:
		return "building"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Value runs its build function at most once. Concurrent callers block
// until the first build finishes and then all observe the same result or
// the same error. Failed is terminal.
type Value[T any] struct {
	once  sync.Once
	build func() (T, error)
	state atomic.Int32
	value T
	err   error
}

func New[T any](build func() (T, error)) *Value[T] {
	return &Value[T]{build: build}
}

// Get returns the built value, building it on first use
func (v *Value[T]) Get() (T, error) {
	v.once.Do(func() {
		v.state.Store(int32(Building))
		value, err := v.build()
		if err != nil {
			v.err = err
			v.state.Store(int32(Failed))
			return
		}
		v.value = value
		v.state.Store(int32(Ready))
	})
	return v.value, v.err
}

func (v *Value[T]) State() State {
	return State(v.state.Load())
}
