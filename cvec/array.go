package cvec

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
)

// Element is a scalar type that can live in a device Array
type Element interface {
	~int32 | ~float32 | ~complex64
}

// SizeOf returns the size in bytes of one element of T
func SizeOf[T Element]() int64 {
	var zero T
	return int64(unsafe.Sizeof(zero))
}

// Array is a typed device array of fixed length
type Array[T Element] struct {
	dev       *device.Device
	mem       *gocca.OCCAMemory
	n         int
	allocated bool
}

// NewArray allocates a device array initialized from vals
func NewArray[T Element](dev *device.Device, vals []T) (*Array[T], error) {
	a, err := NewArrayN[T](dev, len(vals))
	if err != nil {
		return nil, err
	}
	if err = a.Set(vals); err != nil {
		a.Free()
		return nil, err
	}
	return a, nil
}

// NewArrayN allocates a zeroed device array of n elements
func NewArrayN[T Element](dev *device.Device, n int) (*Array[T], error) {
	if n < 0 {
		return nil, fmt.Errorf("negative array length %d", n)
	}
	// Zero-length arrays still get a valid allocation to pass to kernels
	bytes := SizeOf[T]() * int64(max(n, 1))
	zeros := make([]T, max(n, 1))
	mem, err := dev.Malloc(bytes, unsafe.Pointer(&zeros[0]))
	if err != nil {
		return nil, err
	}
	return &Array[T]{dev: dev, mem: mem, n: n, allocated: true}, nil
}

// Set overwrites the whole array
func (a *Array[T]) Set(vals []T) error {
	if !a.allocated {
		return fmt.Errorf("set on freed array")
	}
	if len(vals) != a.n {
		return fmt.Errorf("array length mismatch: have %d, got %d", a.n, len(vals))
	}
	if a.n == 0 {
		return nil
	}
	return a.dev.CopyFrom(a.mem, unsafe.Pointer(&vals[0]), SizeOf[T]()*int64(a.n), 0)
}

// Get copies the array back to the host
func (a *Array[T]) Get() ([]T, error) {
	if !a.allocated {
		return nil, fmt.Errorf("get on freed array")
	}
	out := make([]T, a.n)
	if a.n == 0 {
		return out, nil
	}
	if err := a.dev.CopyTo(a.mem, unsafe.Pointer(&out[0]), SizeOf[T]()*int64(a.n), 0); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Array[T]) Len() int {
	return a.n
}

func (a *Array[T]) Mem() *gocca.OCCAMemory {
	return a.mem
}

// Free releases the device memory once; later calls do nothing
func (a *Array[T]) Free() {
	if a == nil || !a.allocated {
		return
	}
	a.dev.FreeMemory(a.mem)
	a.mem = nil
	a.allocated = false
}
