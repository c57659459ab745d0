package propagator

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// strict dot-test tolerance used throughout the propagator tests
const tolerance = 1e-5

func testDevice(t *testing.T) *device.Device {
	t.Helper()
	dev := device.CreateTestDevice()
	t.Cleanup(dev.Free)
	return dev
}

type dotTester interface {
	DotTest(verbose bool) (float64, float64, error)
}

func requireDotTest(t *testing.T, op dotTester) {
	t.Helper()
	errNoAdd, errAdd, err := op.DotTest(testing.Verbose())
	require.NoError(t, err)
	assert.LessOrEqual(t, errNoAdd, tolerance)
	assert.LessOrEqual(t, errAdd, tolerance)
}

// rounded returns the values as the device stores them
func rounded(r *hypercube.ComplexReg) *hypercube.ComplexReg {
	out := r.Clone()
	for i, v := range out.Vals() {
		out.Vals()[i] = complex128(complex64(v))
	}
	return out
}

func relDiff(t *testing.T, got, want *hypercube.ComplexReg) float64 {
	t.Helper()
	diff := got.Clone()
	require.NoError(t, diff.ScaleAdd(want, 1, -1))
	return diff.Norm(2) / want.Norm(2)
}

func selfDot(t *testing.T, r *hypercube.ComplexReg) float64 {
	t.Helper()
	d, err := r.Dot(r)
	require.NoError(t, err)
	return real(d)
}

func assertClose(t *testing.T, want, got []complex128, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	worst := 0.0
	for i := range want {
		worst = math.Max(worst, cmplx.Abs(want[i]-got[i]))
	}
	assert.LessOrEqual(t, worst, tol)
}
