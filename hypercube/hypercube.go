package hypercube

import (
	"fmt"
	"strings"
)

// MaxDims is the largest number of axes a Hypercube can describe
const MaxDims = 7

// Axis describes one regularly sampled dimension
type Axis struct {
	N     int     // Number of samples
	O     float64 // Origin
	D     float64 // Sampling interval
	Label string
}

// NewAxis creates an axis with n samples, origin o and sampling d
func NewAxis(n int, o, d float64) Axis {
	return Axis{N: n, O: o, D: d}
}

// Hypercube is an ordered set of axes, first axis fastest in memory
type Hypercube struct {
	axes []Axis
}

// New creates a Hypercube from explicit axes
func New(axes ...Axis) (*Hypercube, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("hypercube needs at least one axis")
	}
	if len(axes) > MaxDims {
		return nil, fmt.Errorf("hypercube supports at most %d axes, got %d", MaxDims, len(axes))
	}
	h := &Hypercube{axes: make([]Axis, len(axes))}
	for i, ax := range axes {
		if ax.N < 1 {
			return nil, fmt.Errorf("axis %d has non-positive count %d", i+1, ax.N)
		}
		if ax.D == 0 {
			ax.D = 1
		}
		h.axes[i] = ax
	}
	return h, nil
}

// NewN creates a Hypercube with unit sampling and zero origin on every axis
func NewN(ns ...int) (*Hypercube, error) {
	axes := make([]Axis, len(ns))
	for i, n := range ns {
		axes[i] = Axis{N: n, D: 1}
	}
	return New(axes...)
}

// MustNew panics on an invalid description; meant for fixed shapes in tests and examples
func MustNew(axes ...Axis) *Hypercube {
	h, err := New(axes...)
	if err != nil {
		panic(err)
	}
	return h
}

// MustNewN is the panicking form of NewN
func MustNewN(ns ...int) *Hypercube {
	h, err := NewN(ns...)
	if err != nil {
		panic(err)
	}
	return h
}

// NDim returns the number of axes
func (h *Hypercube) NDim() int {
	return len(h.axes)
}

// Axis returns the i'th axis (0-based)
func (h *Hypercube) Axis(i int) Axis {
	return h.axes[i]
}

// Axes returns a copy of all axes
func (h *Hypercube) Axes() []Axis {
	out := make([]Axis, len(h.axes))
	copy(out, h.axes)
	return out
}

// Ns returns the sample counts of all axes
func (h *Hypercube) Ns() []int {
	ns := make([]int, len(h.axes))
	for i, ax := range h.axes {
		ns[i] = ax.N
	}
	return ns
}

// N123 returns the total number of samples
func (h *Hypercube) N123() int {
	n := 1
	for _, ax := range h.axes {
		n *= ax.N
	}
	return n
}

// Clone returns a deep copy
func (h *Hypercube) Clone() *Hypercube {
	return &Hypercube{axes: h.Axes()}
}

// SameShape reports whether both hypercubes have identical axis counts
func (h *Hypercube) SameShape(other *Hypercube) bool {
	if other == nil || len(h.axes) != len(other.axes) {
		return false
	}
	for i := range h.axes {
		if h.axes[i].N != other.axes[i].N {
			return false
		}
	}
	return true
}

// Flat converts an n-d index into a flat offset, first axis fastest
func (h *Hypercube) Flat(idx ...int) int {
	flat, stride := 0, 1
	for i, ix := range idx {
		flat += ix * stride
		stride *= h.axes[i].N
	}
	return flat
}

func (h *Hypercube) String() string {
	parts := make([]string, len(h.axes))
	for i, ax := range h.axes {
		parts[i] = fmt.Sprintf("n%d=%d o%d=%g d%d=%g", i+1, ax.N, i+1, ax.O, i+1, ax.D)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
