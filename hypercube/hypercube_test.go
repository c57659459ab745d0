package hypercube

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHypercube_Construction(t *testing.T) {
	t.Run("N123", func(t *testing.T) {
		h, err := NewN(100, 100, 10, 10)
		require.NoError(t, err)
		assert.Equal(t, 4, h.NDim())
		assert.Equal(t, 1000000, h.N123())
		assert.Equal(t, []int{100, 100, 10, 10}, h.Ns())
	})

	t.Run("TooManyAxes", func(t *testing.T) {
		_, err := NewN(1, 1, 1, 1, 1, 1, 1, 1)
		assert.Error(t, err)
	})

	t.Run("NonPositiveCount", func(t *testing.T) {
		_, err := New(NewAxis(10, 0, 1), NewAxis(0, 0, 1))
		assert.Error(t, err)
	})

	t.Run("CloneIsDeep", func(t *testing.T) {
		h := MustNew(NewAxis(4, 1, 0.5), NewAxis(3, 0, 2))
		c := h.Clone()
		c.axes[0].N = 99
		assert.Equal(t, 4, h.Axis(0).N)
		assert.True(t, h.SameShape(MustNewN(4, 3)))
		assert.False(t, h.SameShape(c))
	})

	t.Run("FlatFirstAxisFastest", func(t *testing.T) {
		h := MustNewN(5, 4, 3)
		assert.Equal(t, 0, h.Flat(0, 0, 0))
		assert.Equal(t, 1, h.Flat(1, 0, 0))
		assert.Equal(t, 5, h.Flat(0, 1, 0))
		assert.Equal(t, 2+3*5+1*20, h.Flat(2, 3, 1))
	})
}

func TestComplexReg_Algebra(t *testing.T) {
	h := MustNewN(8, 6)

	t.Run("DotIsConjugateInnerProduct", func(t *testing.T) {
		a := NewComplexReg(h)
		b := NewComplexReg(h)
		a.Set(1i)
		b.Set(2)
		dot, err := a.Dot(b)
		require.NoError(t, err)
		assert.InDelta(t, 0, real(dot), 1e-12)
		assert.InDelta(t, -96, imag(dot), 1e-12)
	})

	t.Run("ZeroThenDotIsZero", func(t *testing.T) {
		a := NewComplexReg(h)
		a.Random()
		a.Zero()
		dot, err := a.Dot(a)
		require.NoError(t, err)
		assert.Equal(t, complex128(0), dot)
	})

	t.Run("RandomBounds", func(t *testing.T) {
		a := NewComplexReg(h)
		a.Random()
		for _, v := range a.Vals() {
			assert.LessOrEqual(t, math.Abs(real(v)), 1.0)
			assert.LessOrEqual(t, math.Abs(imag(v)), 1.0)
		}
		assert.Greater(t, a.Norm(2), 0.0)
	})

	t.Run("ScaleAdd", func(t *testing.T) {
		a := NewComplexReg(h)
		b := NewComplexReg(h)
		a.Set(3)
		b.Set(1 + 1i)
		require.NoError(t, a.ScaleAdd(b, 1, -1))
		for _, v := range a.Vals() {
			assert.Equal(t, complex(2, -1), v)
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		a := NewComplexReg(h)
		b := NewComplexReg(MustNewN(8, 5))
		_, err := a.Dot(b)
		assert.Error(t, err)
		assert.Error(t, a.Add(b))
		assert.Error(t, a.Add(nil))
	})

	t.Run("CloneSpaceIsZeroed", func(t *testing.T) {
		a := NewComplexReg(h)
		a.Set(5)
		c := a.CloneSpace()
		assert.Equal(t, 0.0, c.Norm(2))
		assert.False(t, a.HasNaNOrInf())
	})
}
