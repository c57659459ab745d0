package hypercube

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/stat/distuv"
)

// ComplexReg is a host-resident complex array on a regular grid
type ComplexReg struct {
	hyper *Hypercube
	vals  []complex128
}

// NewComplexReg allocates a zeroed container shaped by hyper
func NewComplexReg(hyper *Hypercube) *ComplexReg {
	return &ComplexReg{
		hyper: hyper.Clone(),
		vals:  make([]complex128, hyper.N123()),
	}
}

// NewComplexRegN allocates a zeroed container with unit-sampled axes
func NewComplexRegN(ns ...int) (*ComplexReg, error) {
	h, err := NewN(ns...)
	if err != nil {
		return nil, err
	}
	return NewComplexReg(h), nil
}

// MustNewComplexRegN is the panicking form of NewComplexRegN
func MustNewComplexRegN(ns ...int) *ComplexReg {
	return NewComplexReg(MustNewN(ns...))
}

// Hyper returns the container's shape descriptor
func (c *ComplexReg) Hyper() *Hypercube {
	return c.hyper
}

// Vals returns the flat backing slice
func (c *ComplexReg) Vals() []complex128 {
	return c.vals
}

// Zero sets every sample to 0
func (c *ComplexReg) Zero() {
	clear(c.vals)
}

// Set sets every sample to v
func (c *ComplexReg) Set(v complex128) {
	for i := range c.vals {
		c.vals[i] = v
	}
}

// Clone returns a deep copy
func (c *ComplexReg) Clone() *ComplexReg {
	out := NewComplexReg(c.hyper)
	copy(out.vals, c.vals)
	return out
}

// CloneSpace returns a zeroed container of the same shape
func (c *ComplexReg) CloneSpace() *ComplexReg {
	return NewComplexReg(c.hyper)
}

// Random fills real and imaginary parts with uniform values in [-1, 1]
func (c *ComplexReg) Random() {
	u := distuv.Uniform{Min: -1, Max: 1}
	for i := range c.vals {
		c.vals[i] = complex(u.Rand(), u.Rand())
	}
}

// Dot returns sum(conj(c[i]) * other[i])
func (c *ComplexReg) Dot(other *ComplexReg) (complex128, error) {
	if err := c.checkShape(other); err != nil {
		return 0, err
	}
	return cmplxs.Dot(c.vals, other.vals), nil
}

// Norm returns the L-norm of the samples
func (c *ComplexReg) Norm(L float64) float64 {
	return cmplxs.Norm(c.vals, L)
}

// ScaleAdd computes c = sc1*c + sc2*other
func (c *ComplexReg) ScaleAdd(other *ComplexReg, sc1, sc2 complex128) error {
	if err := c.checkShape(other); err != nil {
		return err
	}
	cmplxs.Scale(sc1, c.vals)
	cmplxs.AddScaled(c.vals, sc2, other.vals)
	return nil
}

// Add computes c += other
func (c *ComplexReg) Add(other *ComplexReg) error {
	if err := c.checkShape(other); err != nil {
		return err
	}
	cmplxs.Add(c.vals, other.vals)
	return nil
}

// HasNaNOrInf reports whether any sample is not finite
func (c *ComplexReg) HasNaNOrInf() bool {
	for _, v := range c.vals {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return true
		}
	}
	return false
}

func (c *ComplexReg) checkShape(other *ComplexReg) error {
	if other == nil {
		return fmt.Errorf("nil operand for %v", c.hyper)
	}
	if len(c.vals) != len(other.vals) {
		return fmt.Errorf("shape mismatch: %v vs %v", c.hyper, other.hyper)
	}
	return nil
}
