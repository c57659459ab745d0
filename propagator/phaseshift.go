package propagator

import (
	"github.com/notargets/wem/cvec"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/kernels"
	"github.com/notargets/wem/operator"
)

// PhaseShift extrapolates a (kx, ky, w, s) wavefield by one depth step dz
// using one complex slowness per frequency
type PhaseShift struct {
	*operator.Operator

	launcher *kernels.PhaseShift
	slow     *cvec.Array[complex64]
	dz, eps  float32
	dir      Direction
}

func NewPhaseShift(dev *device.Device, hyper *hypercube.Hypercube, dz, eps float64,
	cfg operator.Config) (*PhaseShift, error) {
	if err := requireDims("NewPhaseShift", hyper, 4, "domain"); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "PhaseShift"
	}

	ps := &PhaseShift{dz: float32(dz), eps: float32(eps)}
	var err error
	if ps.launcher, err = kernels.NewPhaseShift(dev, cfg.Grid, cfg.Block); err != nil {
		return nil, err
	}
	if ps.slow, err = cvec.NewArrayN[complex64](dev, hyper.Axis(2).N); err != nil {
		return nil, err
	}
	if ps.Operator, err = operator.New(dev, hyper, hyper, ps, cfg); err != nil {
		ps.slow.Free()
		return nil, err
	}
	return ps, nil
}

// SetSlow uploads one slowness per frequency
func (ps *PhaseShift) SetSlow(slow []complex64) error {
	if len(slow) != ps.slow.Len() {
		return operator.NewConfigError("SetSlow", "need %d slowness values, got %d", ps.slow.Len(), len(slow))
	}
	return ps.slow.Set(slow)
}

func (ps *PhaseShift) SetDirection(dir Direction) {
	ps.dir = dir
}

func (ps *PhaseShift) Direction() Direction {
	return ps.dir
}

func (ps *PhaseShift) DZ() float64 {
	return float64(ps.dz)
}

func (ps *PhaseShift) params(v *cvec.ComplexVector) kernels.PhaseParams {
	return kernels.PhaseParams{
		N:    v.N.Mem(),
		O:    v.O.Mem(),
		D:    v.D.Mem(),
		Slow: ps.slow.Mem(),
		DZ:   ps.dz,
		Eps:  ps.eps,
		Sign: ps.dir.sign(),
	}
}

func (ps *PhaseShift) ChunkAware() {}

func (ps *PhaseShift) LocalAdjoint() {}

func (ps *PhaseShift) SetLaunch(grid, block device.Dim3) {
	ps.launcher.SetLaunch(grid, block)
}

func (ps *PhaseShift) DeviceForward(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return ps.launcher.Apply(kernels.PhaseForward, add, ps.params(data), w.Offset, w.Count, model.Mat, data.Mat)
}

func (ps *PhaseShift) DeviceAdjoint(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return ps.launcher.Apply(kernels.PhaseAdjoint, add, ps.params(model), w.Offset, w.Count, data.Mat, model.Mat)
}

func (ps *PhaseShift) DeviceInverse(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return ps.launcher.Apply(kernels.PhaseInverse, add, ps.params(model), w.Offset, w.Count, data.Mat, model.Mat)
}

func (ps *PhaseShift) Free() {
	ps.slow.Free()
	ps.Operator.Free()
}
