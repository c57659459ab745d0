package device

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/notargets/gocca"
)

// Device serializes access to one OCCA device and caches compiled kernels.
// Work is queued on the device's current stream; kernel launches and async
// copies return without waiting, and Sync blocks until the current stream
// drains.
type Device struct {
	*gocca.OCCADevice
	mu      sync.Mutex
	kernels map[string]*gocca.OCCAKernel
	base    *gocca.OCCAStream
	async   *gocca.OCCAJson
}

// NewDevice opens an OCCA device from a JSON property string,
// e.g. `{"mode": "CUDA", "device_id": 0}`
func NewDevice(props string) (*Device, error) {
	dev, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("failed to create device %s: %w", props, err)
	}
	return Wrap(dev), nil
}

// Wrap adopts an existing OCCA device
func Wrap(dev *gocca.OCCADevice) *Device {
	if dev == nil {
		panic("nil OCCA device")
	}
	return &Device{
		OCCADevice: dev,
		kernels:    make(map[string]*gocca.OCCAKernel),
		base:       dev.GetStream(),
		async:      gocca.JsonParse(`{"async": true}`),
	}
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *Device {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}

	for _, props := range backends {
		dev, err := gocca.NewDevice(props)
		if err == nil {
			fmt.Printf("Created %s Device\n", dev.Mode())
			return Wrap(dev)
		}
	}

	// Should not reach here
	panic("Failed to create any Device")
}

// Malloc allocates bytes of device memory, optionally initialized from src
func (d *Device) Malloc(bytes int64, src unsafe.Pointer) (mem *gocca.OCCAMemory, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			mem, err = nil, Check("Malloc", fmt.Errorf("%v", r))
		}
	}()

	mem = d.OCCADevice.Malloc(bytes, src, nil)
	if mem == nil {
		return nil, Check("Malloc", fmt.Errorf("allocation of %d bytes returned nil", bytes))
	}
	return mem, nil
}

// CopyFrom copies bytes from host src into mem starting at byte offset. It
// is ordered after earlier work on the current stream and returns once the
// copy is complete.
func (d *Device) CopyFrom(mem *gocca.OCCAMemory, src unsafe.Pointer, bytes, offset int64) error {
	if err := d.CopyFromAsync(mem, src, bytes, offset); err != nil {
		return err
	}
	return d.Sync()
}

// CopyTo copies bytes from mem starting at byte offset into host dst and
// returns once dst holds the data
func (d *Device) CopyTo(mem *gocca.OCCAMemory, dst unsafe.Pointer, bytes, offset int64) error {
	if err := d.CopyToAsync(mem, dst, bytes, offset); err != nil {
		return err
	}
	return d.Sync()
}

// CopyFromAsync queues a host to device copy on the current stream. src must
// stay valid and unmodified until the stream is synchronized.
func (d *Device) CopyFromAsync(mem *gocca.OCCAMemory, src unsafe.Pointer, bytes, offset int64) (err error) {
	if bytes == 0 {
		return nil
	}
	if mem == nil {
		return Check("CopyFromAsync", fmt.Errorf("destination memory is nil"))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = Check("CopyFromAsync", fmt.Errorf("%v", r))
		}
	}()

	mem.CopyFromWithProps(src, bytes, offset, d.async)
	return nil
}

// CopyToAsync queues a device to host copy on the current stream. dst is
// not valid until the stream is synchronized.
func (d *Device) CopyToAsync(mem *gocca.OCCAMemory, dst unsafe.Pointer, bytes, offset int64) (err error) {
	if bytes == 0 {
		return nil
	}
	if mem == nil {
		return Check("CopyToAsync", fmt.Errorf("source memory is nil"))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = Check("CopyToAsync", fmt.Errorf("%v", r))
		}
	}()

	mem.CopyToWithProps(dst, bytes, offset, d.async)
	return nil
}

// Sync blocks until all work queued on the current stream has completed
func (d *Device) Sync() (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = Check("Sync", fmt.Errorf("%v", r))
		}
	}()

	d.OCCADevice.Finish()
	return nil
}

// use makes stream current; nil selects the device's default stream
func (d *Device) use(stream *gocca.OCCAStream) {
	if stream == nil {
		stream = d.base
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OCCADevice.SetStream(stream)
}

// FreeMemory releases device memory; nil is ignored
func (d *Device) FreeMemory(mem *gocca.OCCAMemory) {
	if mem == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	mem.Free()
}

// BuildKernel compiles source once per kernel name and caches the result
func (d *Device) BuildKernel(source, name string) (*gocca.OCCAKernel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if kernel, exists := d.kernels[name]; exists {
		return kernel, nil
	}

	var kernel *gocca.OCCAKernel
	var err error
	if d.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = d.BuildKernelFromString(source, name, props)
	} else {
		kernel, err = d.BuildKernelFromString(source, name, nil)
	}
	if err != nil {
		return nil, Check("BuildKernel", fmt.Errorf("failed to build kernel %s: %w", name, err))
	}
	if kernel == nil {
		return nil, Check("BuildKernel", fmt.Errorf("kernel build returned nil for %s", name))
	}

	d.kernels[name] = kernel
	return kernel, nil
}

// Run queues a compiled kernel on the current stream. It does not wait for
// the kernel; use Sync or Stream.Synchronize.
func (d *Device) Run(kernel *gocca.OCCAKernel, args ...interface{}) (err error) {
	if kernel == nil {
		return Check("Run", fmt.Errorf("kernel is nil"))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = Check("Run", fmt.Errorf("%v", r))
		}
	}()

	if err := kernel.RunWithArgs(args...); err != nil {
		return Check("Run", fmt.Errorf("kernel execution failed: %w", err))
	}
	return nil
}

// Free releases cached kernels and the underlying device
func (d *Device) Free() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, kernel := range d.kernels {
		kernel.Free()
		delete(d.kernels, name)
	}
	if d.async != nil {
		d.async.Free()
		d.async = nil
	}
	d.OCCADevice.Free()
}
