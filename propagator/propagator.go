// Package propagator implements the one-way wave-equation operators:
// source/receiver injection, reference-slowness selection, phase shift,
// 2-D FFT, the PSPI depth step, and depth-stepped downward and upward
// continuation. Each type embeds an *operator.Operator and supplies its
// device kernel.
package propagator

import (
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/operator"
)

// Direction of depth extrapolation
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

func (d Direction) sign() float32 {
	if d == Up {
		return -1
	}
	return 1
}

// whole is the window covering every element of h
func whole(h *hypercube.Hypercube) operator.Window {
	return operator.Window{Offset: 0, Count: h.N123()}
}

func requireDims(op string, h *hypercube.Hypercube, ndim int, what string) error {
	if h == nil {
		return operator.NewConfigError(op, "nil %s", what)
	}
	if h.NDim() != ndim {
		return operator.NewConfigError(op, "%s must have %d axes, got %d", what, ndim, h.NDim())
	}
	return nil
}
