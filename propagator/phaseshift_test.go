package propagator

import (
	"testing"

	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/operator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPhaseShiftFixture(t *testing.T) (*PhaseShift, *hypercube.ComplexReg) {
	t.Helper()
	dev := testDevice(t)

	hyper := hypercube.MustNewN(100, 100, 10, 10)
	ps, err := NewPhaseShift(dev, hyper, 0.1, 0, operator.Config{})
	require.NoError(t, err)
	t.Cleanup(ps.Free)

	slow := make([]complex64, 10)
	for i := range slow {
		slow[i] = 1
	}
	require.NoError(t, ps.SetSlow(slow))

	space := hypercube.NewComplexReg(hyper)
	space.Set(1)
	return ps, space
}

func TestPhaseShift(t *testing.T) {
	ps, space := newPhaseShiftFixture(t)

	t.Run("forward", func(t *testing.T) {
		out := space.Clone()
		ps.SetGrid(device.NewDim3(32, 4, 4))
		ps.SetBlock(device.NewDim3(16, 16, 4))
		for i := 0; i < 100; i++ {
			require.NoError(t, ps.Forward(false, space, out))
		}
		assert.False(t, out.HasNaNOrInf())
		assert.Greater(t, out.Norm(2), 0.0)
	})

	t.Run("adjoint", func(t *testing.T) {
		out := space.Clone()
		for i := 0; i < 100; i++ {
			require.NoError(t, ps.Adjoint(false, out, space))
		}
		assert.False(t, out.HasNaNOrInf())
	})

	t.Run("inverse", func(t *testing.T) {
		model := space.Clone()
		data := space.CloneSpace()
		inv := space.CloneSpace()
		for i := 0; i < 10; i++ {
			model.Random()
			require.NoError(t, ps.Forward(false, model, data))
			require.NoError(t, ps.Inverse(false, inv, data))
			assert.LessOrEqual(t, relDiff(t, inv, rounded(model)), 1e-7, "trial %d", i)
		}
	})

	t.Run("dot test", func(t *testing.T) {
		requireDotTest(t, ps)
	})

	t.Run("upward dot test", func(t *testing.T) {
		ps.SetDirection(Up)
		defer ps.SetDirection(Down)
		requireDotTest(t, ps)
	})

	t.Run("chunked matches single chunk", func(t *testing.T) {
		model := space.Clone()
		model.Random()
		single := space.CloneSpace()
		require.NoError(t, ps.Forward(false, model, single))

		require.NoError(t, ps.SetChunks(7))
		defer func() { require.NoError(t, ps.SetChunks(1)) }()
		chunked := space.CloneSpace()
		require.NoError(t, ps.Forward(false, model, chunked))
		assert.Equal(t, single.Vals(), chunked.Vals())

		requireDotTest(t, ps)
	})

	t.Run("in place accumulates", func(t *testing.T) {
		v := space.Clone()
		v.Random()
		want := space.CloneSpace()
		require.NoError(t, ps.Forward(false, v, want))
		require.NoError(t, want.Add(v))

		require.NoError(t, ps.ForwardInPlace(v))
		assertClose(t, want.Vals(), v.Vals(), 1e-5)
	})

	t.Run("slowness length is checked", func(t *testing.T) {
		err := ps.SetSlow(make([]complex64, 3))
		assert.True(t, operator.IsConfigError(err))
	})
}

func TestPhaseShiftDamping(t *testing.T) {
	dev := testDevice(t)

	hyper := hypercube.MustNewN(16, 12, 6, 2)
	ps, err := NewPhaseShift(dev, hyper, 0.5, 0.3, operator.Config{})
	require.NoError(t, err)
	defer ps.Free()
	require.NoError(t, ps.SetSlow([]complex64{1, 1.2, 0.8 + 0.1i, 1, 0.9, 1.1}))

	// Damping only attenuates
	m := hypercube.NewComplexReg(hyper)
	m.Random()
	d := m.CloneSpace()
	require.NoError(t, ps.Forward(false, m, d))
	assert.Less(t, d.Norm(2), m.Norm(2))

	requireDotTest(t, ps)

	assert.Error(t, requireDims("NewPhaseShift", hypercube.MustNewN(4, 4), 4, "domain"))
	_, err = NewPhaseShift(dev, hypercube.MustNewN(4, 4), 0.1, 0, operator.Config{})
	assert.True(t, operator.IsConfigError(err))
}
