package propagator

import (
	"math"
	"testing"

	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/operator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFT2(t *testing.T) {
	dev := testDevice(t)

	hyper := hypercube.MustNewN(8, 6, 3)
	f, err := NewFFT2(dev, hyper, operator.Config{})
	require.NoError(t, err)
	defer f.Free()

	t.Run("delta transforms to a constant", func(t *testing.T) {
		m := hypercube.NewComplexReg(hyper)
		m.Vals()[hyper.Flat(0, 0, 1)] = 1
		d := m.CloneSpace()
		require.NoError(t, f.Forward(false, m, d))

		c := 1 / math.Sqrt(48)
		for i, v := range d.Vals() {
			if i >= 48 && i < 96 {
				assert.InDelta(t, c, real(v), 1e-6)
				assert.InDelta(t, 0, imag(v), 1e-6)
			} else {
				assert.Equal(t, complex128(0), v)
			}
		}
	})

	t.Run("unitary", func(t *testing.T) {
		m := hypercube.NewComplexReg(hyper)
		m.Random()
		d := m.CloneSpace()
		require.NoError(t, f.Forward(false, m, d))
		assert.InDelta(t, 1, d.Norm(2)/m.Norm(2), 1e-6)

		back := m.CloneSpace()
		require.NoError(t, f.Inverse(false, back, d))
		assert.LessOrEqual(t, relDiff(t, back, m), 1e-6)
	})

	t.Run("dot test", func(t *testing.T) {
		requireDotTest(t, f)
	})

	t.Run("not chunk aware", func(t *testing.T) {
		assert.True(t, operator.IsConfigError(f.SetChunks(2)))
	})

	_, err = NewFFT2(dev, hypercube.MustNewN(8), operator.Config{})
	assert.True(t, operator.IsConfigError(err))
}
