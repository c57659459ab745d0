package kernels

import (
	"testing"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreamble(t *testing.T) {
	t.Run("default is single precision", func(t *testing.T) {
		p := Preamble(DefaultPreamble())
		assert.Contains(t, p, "typedef float real_t;")
		assert.Contains(t, p, "typedef int int_t;")
		assert.Contains(t, p, "#define REAL_ZERO 0.0f")
		assert.Contains(t, p, "#define RE(a, i) a[2*(i)]")
		assert.Contains(t, p, "#define GRID_STRIDE(i, count)")
	})

	t.Run("double precision", func(t *testing.T) {
		p := Preamble(PreambleConfig{FloatType: Float64, IntType: INT64})
		assert.Contains(t, p, "typedef double real_t;")
		assert.Contains(t, p, "typedef long int_t;")
		assert.Contains(t, p, "#define REAL_ONE 1.0\n")
	})
}

func upload(t *testing.T, dev *device.Device, vals []complex64) *gocca.OCCAMemory {
	t.Helper()
	mem, err := dev.Malloc(int64(len(vals)*8), unsafe.Pointer(&vals[0]))
	require.NoError(t, err)
	t.Cleanup(func() { dev.FreeMemory(mem) })
	return mem
}

func download(t *testing.T, dev *device.Device, mem *gocca.OCCAMemory, n int) []complex64 {
	t.Helper()
	out := make([]complex64, n)
	require.NoError(t, dev.CopyTo(mem, unsafe.Pointer(&out[0]), int64(n*8), 0))
	return out
}

func ramp(n int) []complex64 {
	v := make([]complex64, n)
	for i := range v {
		v[i] = complex(float32(i+1), float32(-i))
	}
	return v
}

func TestLauncherDefaults(t *testing.T) {
	dev := device.CreateTestDevice()
	defer dev.Free()

	l, err := NewLauncher(dev, "wemVecZero", vectorSource, device.Dim3{}, device.Dim3{})
	require.NoError(t, err)
	assert.Equal(t, DefaultGrid, l.Grid)
	assert.Equal(t, DefaultBlock, l.Block)

	l.SetLaunch(device.NewDim3(3), device.Dim3{})
	assert.Equal(t, 3, l.Grid.Size())
	assert.Equal(t, DefaultBlock, l.Block)
}

func TestVectorKernels(t *testing.T) {
	dev := device.CreateTestDevice()
	defer dev.Free()

	// Small launches force every thread through several stride iterations
	vk, err := NewVector(dev, device.NewDim3(2), device.NewDim3(4))
	require.NoError(t, err)

	n := 37
	t.Run("zero window", func(t *testing.T) {
		mem := upload(t, dev, ramp(n))
		require.NoError(t, vk.Zero(mem, 5, 10))
		out := download(t, dev, mem, n)
		ref := ramp(n)
		for i := range out {
			if i >= 5 && i < 15 {
				assert.Equal(t, complex64(0), out[i], "element %d", i)
			} else {
				assert.Equal(t, ref[i], out[i], "element %d", i)
			}
		}
	})

	t.Run("copy and add", func(t *testing.T) {
		src := upload(t, dev, ramp(n))
		dst := upload(t, dev, make([]complex64, n))
		require.NoError(t, vk.Copy(dst, src, n))
		require.NoError(t, vk.Add(dst, src, n))
		out := download(t, dev, dst, n)
		for i, v := range ramp(n) {
			assert.Equal(t, 2*v, out[i])
		}
	})

	t.Run("scale", func(t *testing.T) {
		mem := upload(t, dev, ramp(n))
		require.NoError(t, vk.Scale(mem, n, complex(0, 1)))
		out := download(t, dev, mem, n)
		for i, v := range ramp(n) {
			assert.Equal(t, v*complex(0, 1), out[i])
		}
	})
}

func TestSelectorKernel(t *testing.T) {
	dev := device.CreateTestDevice()
	defer dev.Free()

	sk, err := NewSelector(dev, device.NewDim3(3), device.NewDim3(8))
	require.NoError(t, err)

	nlab, n := 6, 24
	labels := []int32{0, 1, 2, 1, 0, 1}
	lmem, err := dev.Malloc(int64(nlab*4), unsafe.Pointer(&labels[0]))
	require.NoError(t, err)
	defer dev.FreeMemory(lmem)

	in := upload(t, dev, ramp(n))
	out := upload(t, dev, make([]complex64, n))
	require.NoError(t, sk.Select(false, 0, n, nlab, 1, lmem, in, out))

	got := download(t, dev, out, n)
	for i, v := range ramp(n) {
		if labels[i%nlab] == 1 {
			assert.Equal(t, v, got[i])
		} else {
			assert.Equal(t, complex64(0), got[i])
		}
	}

	// Accumulate the complementary label over half the range
	require.NoError(t, sk.Select(true, 0, n/2, nlab, 0, lmem, in, out))
	got = download(t, dev, out, n)
	for i, v := range ramp(n) {
		switch {
		case labels[i%nlab] == 1:
			assert.Equal(t, v, got[i])
		case labels[i%nlab] == 0 && i < n/2:
			assert.Equal(t, v, got[i])
		default:
			assert.Equal(t, complex64(0), got[i])
		}
	}
}
