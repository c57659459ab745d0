package propagator

import (
	"github.com/notargets/wem/cvec"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/kernels"
	"github.com/notargets/wem/operator"
)

// Selector keeps the wavefield samples whose (x, y, w) cell carries the
// selected label and zeroes the rest. Domain and range are (nx, ny, nw, ns).
// The projection is diagonal with 0/1 entries, so it is self-adjoint.
type Selector struct {
	*operator.Operator

	launcher *kernels.Selector
	labels   *cvec.Array[int32]
	nlab     int
	value    int
}

func NewSelector(dev *device.Device, domain *hypercube.Hypercube, cfg operator.Config) (*Selector, error) {
	if err := requireDims("NewSelector", domain, 4, "domain"); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "Selector"
	}

	s := &Selector{nlab: domain.Axis(0).N * domain.Axis(1).N * domain.Axis(2).N}
	var err error
	if s.launcher, err = kernels.NewSelector(dev, cfg.Grid, cfg.Block); err != nil {
		return nil, err
	}
	if s.labels, err = cvec.NewArrayN[int32](dev, s.nlab); err != nil {
		return nil, err
	}
	if s.Operator, err = operator.New(dev, domain, domain, s, cfg); err != nil {
		s.labels.Free()
		return nil, err
	}
	return s, nil
}

// SetLabels uploads one label per (x, y, w) cell
func (s *Selector) SetLabels(labels []int32) error {
	if len(labels) != s.nlab {
		return operator.NewConfigError("SetLabels", "need %d labels, got %d", s.nlab, len(labels))
	}
	return s.labels.Set(labels)
}

// SetValue chooses which label passes through
func (s *Selector) SetValue(v int) {
	s.value = v
}

func (s *Selector) Value() int {
	return s.value
}

func (s *Selector) ChunkAware() {}

func (s *Selector) LocalAdjoint() {}

func (s *Selector) SetLaunch(grid, block device.Dim3) {
	s.launcher.SetLaunch(grid, block)
}

func (s *Selector) DeviceForward(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return s.launcher.Select(add, w.Offset, w.Count, s.nlab, s.value, s.labels.Mem(), model.Mat, data.Mat)
}

func (s *Selector) DeviceAdjoint(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return s.launcher.Select(add, w.Offset, w.Count, s.nlab, s.value, s.labels.Mem(), data.Mat, model.Mat)
}

func (s *Selector) Free() {
	s.labels.Free()
	s.Operator.Free()
}
