// Package operator provides the base of every device-resident linear
// operator: host staging, chunked dispatch over streams, and the dot test.
package operator

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/notargets/wem/cvec"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
)

// DefaultTolerance bounds the dot-test relative error
const DefaultTolerance = 1e-3

// Vector is the host container contract
type Vector interface {
	Hyper() *hypercube.Hypercube
	Vals() []complex128
	Zero()
}

// Kernel applies an operator to device buffers. Implementations honor add:
// false overwrites the destination window, true accumulates into it. Model
// and data may be the same buffer.
type Kernel interface {
	DeviceForward(add bool, model, data *cvec.ComplexVector, w Window) error
	DeviceAdjoint(add bool, model, data *cvec.ComplexVector, w Window) error
}

// Inverter is implemented by kernels with an inverse
type Inverter interface {
	DeviceInverse(add bool, model, data *cvec.ComplexVector, w Window) error
}

// ChunkAware marks kernels that process an arbitrary window of the range
type ChunkAware interface {
	ChunkAware()
}

// LocalAdjoint marks chunk-aware kernels whose adjoint and inverse for a
// window write only the same window of the model. Their chunks accumulate
// into the model concurrently; other kernels accumulate one chunk at a time.
type LocalAdjoint interface {
	LocalAdjoint()
}

// Launchable kernels own launchers that follow SetGrid/SetBlock
type Launchable interface {
	SetLaunch(grid, block device.Dim3)
}

// Config holds construction options. Model and Data are optional external
// buffers; the operator never frees them.
type Config struct {
	Grid      device.Dim3
	Block     device.Dim3
	Model     *cvec.ComplexVector
	Data      *cvec.ComplexVector
	Tolerance float64
	Logger    *slog.Logger
	Name      string
}

// Operator stages host containers through device buffers and dispatches its
// kernel once per chunk of the range
type Operator struct {
	Name string

	dev      *device.Device
	domain   *hypercube.Hypercube
	rng      *hypercube.Hypercube
	kernel   Kernel
	inverter Inverter

	model, data           *cvec.ComplexVector
	modelAlloc, dataAlloc bool

	grid, block device.Dim3
	chunks      []Window
	streams     []*device.Stream

	tolerance float64
	logger    *slog.Logger
	id        uuid.UUID
	freed     bool
}

// New builds an operator from domain to range around kernel
func New(dev *device.Device, domain, rng *hypercube.Hypercube, kernel Kernel, cfg Config) (*Operator, error) {
	if dev == nil {
		return nil, NewConfigError("New", "nil device")
	}
	if domain == nil || rng == nil {
		return nil, NewConfigError("New", "domain and range are required")
	}
	if kernel == nil {
		return nil, NewConfigError("New", "nil kernel")
	}
	for _, h := range []*hypercube.Hypercube{domain, rng} {
		if h.N123() > cvec.MaxElements {
			return nil, &Error{Type: ErrTypeConfig, Op: "New",
				Message: fmt.Sprintf("%v holds %d elements, limit %d", h, h.N123(), cvec.MaxElements),
				Err:     cvec.ErrTooLarge}
		}
	}

	op := &Operator{
		Name:      cfg.Name,
		dev:       dev,
		domain:    domain.Clone(),
		rng:       rng.Clone(),
		kernel:    kernel,
		grid:      cfg.Grid,
		block:     cfg.Block,
		tolerance: cfg.Tolerance,
		logger:    cfg.Logger,
		id:        uuid.New(),
	}
	if op.Name == "" {
		op.Name = fmt.Sprintf("%T", kernel)
	}
	if op.tolerance <= 0 {
		op.tolerance = DefaultTolerance
	}
	if op.logger == nil {
		op.logger = slog.Default()
	}
	op.logger = op.logger.With("op", op.Name, "id", op.id.String())
	if inv, ok := kernel.(Inverter); ok {
		op.inverter = inv
	}

	var err error
	if op.model, op.modelAlloc, err = op.buffer("model", cfg.Model, op.domain); err != nil {
		return nil, err
	}
	if op.data, op.dataAlloc, err = op.buffer("data", cfg.Data, op.rng); err != nil {
		op.Free()
		return nil, err
	}
	if err = op.SetChunks(1); err != nil {
		op.Free()
		return nil, err
	}

	op.logger.Debug("operator created",
		"domain", op.domain.String(), "range", op.rng.String())
	return op, nil
}

func (op *Operator) buffer(side string, ext *cvec.ComplexVector, h *hypercube.Hypercube) (*cvec.ComplexVector, bool, error) {
	if ext != nil {
		if !ext.Allocated() {
			return nil, false, NewConfigError("New", "%s buffer has been freed", side)
		}
		if ext.NElem != h.N123() {
			return nil, false, NewConfigError("New", "%s buffer holds %d elements, expected %d",
				side, ext.NElem, h.N123())
		}
		return ext, false, nil
	}
	v, err := cvec.New(op.dev, h, op.grid, op.block)
	if err != nil {
		return nil, false, fmt.Errorf("allocating %s buffer: %w", side, err)
	}
	return v, true, nil
}

func (op *Operator) Domain() *hypercube.Hypercube  { return op.domain }
func (op *Operator) Range() *hypercube.Hypercube   { return op.rng }
func (op *Operator) DomainSize() int               { return op.domain.N123() }
func (op *Operator) RangeSize() int                { return op.rng.N123() }
func (op *Operator) DomainSizeInBytes() int64      { return int64(op.DomainSize()) * cvec.ElemBytes }
func (op *Operator) RangeSizeInBytes() int64       { return int64(op.RangeSize()) * cvec.ElemBytes }
func (op *Operator) ModelVec() *cvec.ComplexVector { return op.model }
func (op *Operator) DataVec() *cvec.ComplexVector  { return op.data }
func (op *Operator) Device() *device.Device        { return op.dev }
func (op *Operator) Chunks() []Window              { return append([]Window(nil), op.chunks...) }
func (op *Operator) ID() uuid.UUID                 { return op.id }
func (op *Operator) Logger() *slog.Logger          { return op.logger }
func (op *Operator) Grid() device.Dim3             { return op.grid }
func (op *Operator) Block() device.Dim3            { return op.block }
func (op *Operator) Tolerance() float64            { return op.tolerance }
func (op *Operator) SetTolerance(tol float64)      { op.tolerance = tol }
func (op *Operator) HasInverse() bool              { return op.inverter != nil }

// SetGrid changes the launch grid of the operator's kernels and owned buffers
func (op *Operator) SetGrid(grid device.Dim3) {
	op.grid = grid
	op.applyLaunch()
}

// SetBlock changes the launch block of the operator's kernels and owned buffers
func (op *Operator) SetBlock(block device.Dim3) {
	op.block = block
	op.applyLaunch()
}

func (op *Operator) applyLaunch() {
	if l, ok := op.kernel.(Launchable); ok {
		l.SetLaunch(op.grid, op.block)
	}
	if op.modelAlloc {
		op.model.SetLaunch(op.grid, op.block)
	}
	if op.dataAlloc {
		op.data.SetLaunch(op.grid, op.block)
	}
}

// SetChunks splits the range into n windows, one stream each
func (op *Operator) SetChunks(n int) error {
	if op.freed {
		return op.freedError("SetChunks")
	}
	if n > 1 {
		if _, ok := op.kernel.(ChunkAware); !ok {
			return NewConfigError("SetChunks", "%s does not support chunked execution", op.Name)
		}
	}
	sizes, err := SplitChunks(op.RangeSize(), n)
	if err != nil {
		return err
	}

	op.closeStreams()
	op.chunks = Windows(sizes)
	op.streams = make([]*device.Stream, 0, len(op.chunks))
	for i := range op.chunks {
		s, err := op.dev.NewStream(i)
		if err != nil {
			op.closeStreams()
			return newExecutionError("SetChunks", err)
		}
		op.streams = append(op.streams, s)
	}
	return nil
}

// SetChunksPerAxis takes one chunk count per domain axis; the range is split
// into their product
func (op *Operator) SetChunksPerAxis(counts []int) error {
	if len(counts) != op.domain.NDim() {
		return NewConfigError("SetChunksPerAxis", "need %d chunk counts, one per domain axis, got %d",
			op.domain.NDim(), len(counts))
	}
	total := 1
	for i, c := range counts {
		if c < 1 {
			return NewConfigError("SetChunksPerAxis", "axis %d chunk count must be positive, got %d", i, c)
		}
		total *= c
	}
	return op.SetChunks(total)
}

func (op *Operator) freedError(name string) error {
	return &Error{Type: ErrTypeConfig, Op: name, Message: op.Name, Err: ErrFreed}
}

func (op *Operator) checkPair(name string, model, data Vector) error {
	if op.freed {
		return op.freedError(name)
	}
	if model == nil || data == nil {
		return NewConfigError(name, "nil model or data")
	}
	if len(model.Vals()) != op.DomainSize() {
		return NewConfigError(name, "model has %d elements, domain %v has %d",
			len(model.Vals()), op.domain, op.DomainSize())
	}
	if len(data.Vals()) != op.RangeSize() {
		return NewConfigError(name, "data has %d elements, range %v has %d",
			len(data.Vals()), op.rng, op.RangeSize())
	}
	return nil
}

func (op *Operator) sync(name string) error {
	if err := device.SynchronizeAll(op.streams); err != nil {
		return newExecutionError(name, err)
	}
	return nil
}

// Forward computes data = A model, or data += A model when add is set. Each
// chunk uploads its data window, runs the kernel and downloads the window on
// its own stream, so transfers of one chunk overlap work on another.
func (op *Operator) Forward(add bool, model, data Vector) error {
	if err := op.checkPair("Forward", model, data); err != nil {
		return err
	}
	mvals, dvals := model.Vals(), data.Vals()

	if !add {
		data.Zero()
	}
	if err := op.model.Upload(mvals, 0); err != nil {
		return newExecutionError("Forward", err)
	}

	for i, w := range op.chunks {
		w := w
		_ = op.streams[i].Do(func() error {
			if add {
				if err := op.data.UploadAsync(dvals[w.Offset:w.End()], w.Offset); err != nil {
					return err
				}
			}
			if err := op.kernel.DeviceForward(add, op.model, op.data, w); err != nil {
				return err
			}
			return op.data.DownloadAsync(w.Offset, w.Count)
		})
	}
	if err := op.sync("Forward"); err != nil {
		return err
	}
	if err := op.data.Collect(dvals, 0); err != nil {
		return newExecutionError("Forward", err)
	}
	return nil
}

type deviceApply func(add bool, model, data *cvec.ComplexVector, w Window) error

// toModel stages a range-to-domain application; every chunk accumulates
// into the model buffer after it is cleared or seeded. Data uploads are
// queued on all streams first. Unless the kernel is LocalAdjoint, chunk i
// accumulates only after chunk i-1 has finished.
func (op *Operator) toModel(name string, apply deviceApply, add bool, model, data Vector) error {
	if err := op.checkPair(name, model, data); err != nil {
		return err
	}
	mvals, dvals := model.Vals(), data.Vals()

	if add {
		if err := op.model.Upload(mvals, 0); err != nil {
			return newExecutionError(name, err)
		}
	} else {
		model.Zero()
		if err := op.model.Zero(); err != nil {
			return newExecutionError(name, err)
		}
		if err := op.dev.Sync(); err != nil {
			return newExecutionError(name, err)
		}
	}

	for i, w := range op.chunks {
		w := w
		_ = op.streams[i].Do(func() error {
			return op.data.UploadAsync(dvals[w.Offset:w.End()], w.Offset)
		})
	}
	_, local := op.kernel.(LocalAdjoint)
	for i, w := range op.chunks {
		w := w
		if i > 0 && !local {
			if err := op.streams[i-1].Synchronize(); err != nil {
				_ = op.sync(name)
				return newExecutionError(name, err)
			}
		}
		_ = op.streams[i].Do(func() error {
			return apply(true, op.model, op.data, w)
		})
	}
	if err := op.sync(name); err != nil {
		return err
	}
	if err := op.model.Download(mvals, 0); err != nil {
		return newExecutionError(name, err)
	}
	return nil
}

// Adjoint computes model = A' data, or model += A' data when add is set
func (op *Operator) Adjoint(add bool, model, data Vector) error {
	return op.toModel("Adjoint", op.kernel.DeviceAdjoint, add, model, data)
}

// Inverse computes model = A^-1 data for operators that provide one
func (op *Operator) Inverse(add bool, model, data Vector) error {
	if op.inverter == nil {
		return newUnsupportedError(op.Name + ".Inverse")
	}
	return op.toModel("Inverse", op.inverter.DeviceInverse, add, model, data)
}

func (op *Operator) checkSquare(name string, v Vector) error {
	if op.freed {
		return op.freedError(name)
	}
	if op.DomainSize() != op.RangeSize() {
		return NewConfigError(name, "in-place application needs equal domain and range sizes, have %d and %d",
			op.DomainSize(), op.RangeSize())
	}
	if v == nil || len(v.Vals()) != op.RangeSize() {
		return NewConfigError(name, "vector does not match operator size %d", op.RangeSize())
	}
	return nil
}

// ForwardInPlace computes v += A v through the data buffer
func (op *Operator) ForwardInPlace(v Vector) error {
	return op.inPlace("ForwardInPlace", op.data, op.kernel.DeviceForward, v)
}

// AdjointInPlace computes v += A' v through the model buffer
func (op *Operator) AdjointInPlace(v Vector) error {
	return op.inPlace("AdjointInPlace", op.model, op.kernel.DeviceAdjoint, v)
}

func (op *Operator) inPlace(name string, buf *cvec.ComplexVector, apply deviceApply, v Vector) error {
	if err := op.checkSquare(name, v); err != nil {
		return err
	}
	vals := v.Vals()

	if err := buf.Upload(vals, 0); err != nil {
		return newExecutionError(name, err)
	}
	for i, w := range op.chunks {
		w := w
		_ = op.streams[i].Do(func() error {
			return apply(true, buf, buf, w)
		})
	}
	if err := op.sync(name); err != nil {
		return err
	}
	if err := buf.Download(vals, 0); err != nil {
		return newExecutionError(name, err)
	}
	return nil
}

// Full is the window covering the whole range
func (op *Operator) Full() Window {
	return Window{Offset: 0, Count: op.RangeSize()}
}

func (op *Operator) closeStreams() {
	for _, s := range op.streams {
		s.Close()
	}
	op.streams = nil
}

// Free closes streams and releases owned buffers; later calls do nothing
func (op *Operator) Free() {
	if op.freed {
		return
	}
	op.freed = true
	op.closeStreams()
	if op.modelAlloc {
		op.model.Free()
	}
	if op.dataAlloc {
		op.data.Free()
	}
	op.logger.Debug("operator freed")
}

func (op *Operator) Freed() bool {
	return op.freed
}
