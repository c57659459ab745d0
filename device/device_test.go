package device

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordFailures replaces the abort policy for the duration of a test
func recordFailures(t *testing.T) *[]*DeviceError {
	var mu sync.Mutex
	var seen []*DeviceError
	prev := SetFailurePolicy(func(e *DeviceError) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	t.Cleanup(func() { SetFailurePolicy(prev) })
	return &seen
}

func TestDeviceMemoryRoundTrip(t *testing.T) {
	dev := CreateTestDevice()
	defer dev.Free()

	n := 16
	host := make([]float32, n)
	for i := range host {
		host[i] = float32(i) + 0.5
	}
	mem, err := dev.Malloc(int64(n*4), unsafe.Pointer(&host[0]))
	require.NoError(t, err)
	defer dev.FreeMemory(mem)

	t.Run("full copy back", func(t *testing.T) {
		out := make([]float32, n)
		require.NoError(t, dev.CopyTo(mem, unsafe.Pointer(&out[0]), int64(n*4), 0))
		assert.Equal(t, host, out)
	})

	t.Run("offset copies", func(t *testing.T) {
		patch := []float32{-1, -2, -3}
		require.NoError(t, dev.CopyFrom(mem, unsafe.Pointer(&patch[0]), 12, 5*4))

		out := make([]float32, 4)
		require.NoError(t, dev.CopyTo(mem, unsafe.Pointer(&out[0]), 16, 4*4))
		assert.Equal(t, []float32{4.5, -1, -2, -3}, out)
	})

	t.Run("zero length is a no-op", func(t *testing.T) {
		assert.NoError(t, dev.CopyFrom(mem, nil, 0, 0))
		assert.NoError(t, dev.CopyTo(mem, nil, 0, 0))
	})
}

func TestDeviceBuildAndRun(t *testing.T) {
	dev := CreateTestDevice()
	defer dev.Free()

	k1, err := dev.BuildKernel(fillSource, "fillValue")
	require.NoError(t, err)
	k2, err := dev.BuildKernel(fillSource, "fillValue")
	require.NoError(t, err)
	assert.Same(t, k1, k2, "kernel cache should return the compiled kernel")

	n := 100
	mem, err := dev.Malloc(int64(n*4), nil)
	require.NoError(t, err)
	defer dev.FreeMemory(mem)

	require.NoError(t, dev.Run(k1, int32(2), int32(8), int32(n), mem, float32(3)))

	out := make([]float32, n)
	require.NoError(t, dev.CopyTo(mem, unsafe.Pointer(&out[0]), int64(n*4), 0))
	for i, v := range out {
		assert.Equal(t, float32(3), v, "element %d", i)
	}
}

func TestCheck(t *testing.T) {
	seen := recordFailures(t)

	assert.NoError(t, Check("noop", nil))
	assert.Empty(t, *seen)

	cause := errors.New("boom")
	err := Check("Upload", cause)
	require.Error(t, err)

	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Upload", de.Op)
	assert.NotZero(t, de.Line)
	assert.ErrorIs(t, err, cause)
	require.Len(t, *seen, 1)
	assert.Same(t, de, (*seen)[0])
}

func TestBuildFailureUsesPolicy(t *testing.T) {
	seen := recordFailures(t)
	dev := CreateTestDevice()
	defer dev.Free()

	_, err := dev.BuildKernel("@kernel void broken(", "broken")
	require.Error(t, err)
	var de *DeviceError
	assert.ErrorAs(t, err, &de)
	assert.Len(t, *seen, 1)
}

func TestDim3(t *testing.T) {
	assert.Equal(t, Dim3{X: 4, Y: 1, Z: 1}, NewDim3(4))
	assert.Equal(t, 24, NewDim3(2, 3, 4).Size())
	assert.Equal(t, 1, Dim3{}.Size())
	assert.True(t, Dim3{}.IsZero())
	assert.False(t, NewDim3().IsZero())
}

const fillSource = `
@kernel void fillValue(const int nb, const int nt, const int N, float *a, const float v) {
	for (int b = 0; b < nb; ++b; @outer) {
		for (int t = 0; t < nt; ++t; @inner) {
			for (int i = b*nt + t; i < N; i += nb*nt) {
				a[i] = v;
			}
		}
	}
}`

func TestStream(t *testing.T) {
	dev := CreateTestDevice()
	defer dev.Free()

	fill, err := dev.BuildKernel(fillSource, "fillValue")
	require.NoError(t, err)

	n := 256
	host := make([]float32, n)

	t.Run("work runs in issue order", func(t *testing.T) {
		s, err := dev.NewStream(0)
		require.NoError(t, err)
		defer s.Close()

		mem, err := dev.Malloc(int64(n*4), nil)
		require.NoError(t, err)
		defer dev.FreeMemory(mem)

		for v := 1; v <= 5; v++ {
			v := v
			require.NoError(t, s.Do(func() error {
				return dev.Run(fill, int32(4), int32(32), int32(n), mem, float32(v))
			}))
		}
		require.NoError(t, s.Do(func() error {
			return dev.CopyToAsync(mem, unsafe.Pointer(&host[0]), int64(n*4), 0)
		}))
		require.NoError(t, s.Synchronize())
		for i, v := range host {
			assert.Equal(t, float32(5), v, "element %d", i)
		}
	})

	t.Run("streams fill disjoint halves", func(t *testing.T) {
		mem, err := dev.Malloc(int64(n*4), nil)
		require.NoError(t, err)
		defer dev.FreeMemory(mem)

		streams := make([]*Stream, 2)
		for i := range streams {
			streams[i], err = dev.NewStream(i)
			require.NoError(t, err)
			defer streams[i].Close()
		}
		half := n / 2
		vals := [][]float32{make([]float32, half), make([]float32, half)}
		for i, s := range streams {
			for j := range vals[i] {
				vals[i][j] = float32(i + 1)
			}
			i := i
			require.NoError(t, s.Do(func() error {
				return dev.CopyFromAsync(mem, unsafe.Pointer(&vals[i][0]), int64(half*4), int64(i*half*4))
			}))
		}
		require.NoError(t, SynchronizeAll(streams))

		require.NoError(t, dev.CopyTo(mem, unsafe.Pointer(&host[0]), int64(n*4), 0))
		for i, v := range host {
			assert.Equal(t, float32(1+i/half), v, "element %d", i)
		}
	})

	t.Run("error skips remaining work until sync", func(t *testing.T) {
		s, err := dev.NewStream(1)
		require.NoError(t, err)
		defer s.Close()

		ran := 0
		assert.NoError(t, s.Do(func() error { ran++; return nil }))
		assert.Error(t, s.Do(func() error { return fmt.Errorf("upload failed") }))
		assert.NoError(t, s.Do(func() error { ran++; return nil }))
		err = s.Synchronize()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upload failed")
		assert.Equal(t, 1, ran)

		assert.NoError(t, s.Do(func() error { ran++; return nil }))
		assert.NoError(t, s.Synchronize())
		assert.Equal(t, 2, ran)
	})

	t.Run("synchronize all reports first error in stream order", func(t *testing.T) {
		streams := make([]*Stream, 3)
		for i := range streams {
			streams[i], err = dev.NewStream(i)
			require.NoError(t, err)
			defer streams[i].Close()
		}
		_ = streams[1].Do(func() error { return errors.New("second") })
		_ = streams[2].Do(func() error { return errors.New("third") })
		err := SynchronizeAll(streams)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "second")
		assert.NoError(t, SynchronizeAll(streams))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		s, err := dev.NewStream(0)
		require.NoError(t, err)
		s.Close()
		s.Close()
		assert.Error(t, s.Do(func() error { return nil }))
		assert.NoError(t, s.Synchronize())
	})
}

func TestRunNilKernel(t *testing.T) {
	seen := recordFailures(t)
	dev := CreateTestDevice()
	defer dev.Free()

	err := dev.Run(nil, int32(1))
	require.Error(t, err)
	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Run", de.Op)
	assert.Len(t, *seen, 1)
}

// pinCount reports how many pinned regions hold the page containing ptr
func pinCount(ptr unsafe.Pointer) int {
	pageMu.Lock()
	defer pageMu.Unlock()
	return pageRefs[uintptr(ptr)&^(pageSize-1)]
}

func TestPin(t *testing.T) {
	t.Run("release is idempotent", func(t *testing.T) {
		vals := make([]complex128, 1024)
		p := PinSlice(vals)
		// Locking may be refused by RLIMIT_MEMLOCK; release must work either way
		p.Release()
		p.Release()
		assert.False(t, p.Locked())

		empty := PinSlice[complex128](nil)
		assert.False(t, empty.Locked())
		empty.Release()
	})

	t.Run("regions sharing a page", func(t *testing.T) {
		vals := make([]complex64, 64)
		a := PinSlice(vals[:32])
		b := PinSlice(vals[32:])
		defer a.Release()
		defer b.Release()
		if !a.Locked() || !b.Locked() {
			t.Skip("page locking refused")
		}
		shared := unsafe.Pointer(&vals[32])
		assert.Equal(t, 2, pinCount(shared))

		a.Release()
		assert.Equal(t, 1, pinCount(shared), "page must stay locked while b holds it")
		assert.True(t, b.Locked())

		b.Release()
		assert.Equal(t, 0, pinCount(shared))
	})

	t.Run("runs cover only selected pages", func(t *testing.T) {
		buf := make([]byte, 3*int(pageSize))
		all := pages(buf)
		require.GreaterOrEqual(t, len(all), 3)

		assert.Len(t, runs(buf, func(uintptr) bool { return true }), 1)
		assert.Empty(t, runs(buf, func(uintptr) bool { return false }))

		middle := runs(buf, func(page uintptr) bool { return page == all[1] })
		require.Len(t, middle, 1)
		assert.LessOrEqual(t, len(middle[0]), int(pageSize))
	})
}
