package propagator

import (
	"github.com/notargets/wem/cvec"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/kernels"
	"github.com/notargets/wem/operator"
)

// Injection places traces into a wavefield and records them back out.
// The domain is (nw, ntrace), the range (nx, ny, nw, ns, nz). Trace t sits
// at (cx[t], cy[t], cz[t]) in wavefield slot ids[t] and is spread over the
// surrounding grid cell with trilinear weights.
type Injection struct {
	*operator.Operator

	launcher   *kernels.Injection
	cx, cy, cz *cvec.Array[float32]
	ids        *cvec.Array[int32]
	ntrace     int
}

func NewInjection(dev *device.Device, domain, rng *hypercube.Hypercube,
	cx, cy, cz []float32, ids []int32, cfg operator.Config) (*Injection, error) {
	if err := requireDims("NewInjection", domain, 2, "domain"); err != nil {
		return nil, err
	}
	if err := requireDims("NewInjection", rng, 5, "range"); err != nil {
		return nil, err
	}
	if domain.Axis(0).N != rng.Axis(2).N {
		return nil, operator.NewConfigError("NewInjection",
			"domain has %d frequencies, range has %d", domain.Axis(0).N, rng.Axis(2).N)
	}
	if cfg.Name == "" {
		cfg.Name = "Injection"
	}

	in := &Injection{ntrace: domain.Axis(1).N}
	if err := in.checkCoords(cx, cy, cz, ids); err != nil {
		return nil, err
	}

	var err error
	if in.launcher, err = kernels.NewInjection(dev, cfg.Grid, cfg.Block); err != nil {
		return nil, err
	}
	if in.cx, err = cvec.NewArray(dev, cx); err != nil {
		return nil, err
	}
	if in.cy, err = cvec.NewArray(dev, cy); err != nil {
		in.freeCoords()
		return nil, err
	}
	if in.cz, err = cvec.NewArray(dev, cz); err != nil {
		in.freeCoords()
		return nil, err
	}
	if in.ids, err = cvec.NewArray(dev, ids); err != nil {
		in.freeCoords()
		return nil, err
	}
	if in.Operator, err = operator.New(dev, domain, rng, in, cfg); err != nil {
		in.freeCoords()
		return nil, err
	}
	return in, nil
}

func (in *Injection) checkCoords(cx, cy, cz []float32, ids []int32) error {
	for _, n := range []int{len(cx), len(cy), len(cz), len(ids)} {
		if n != in.ntrace {
			return operator.NewConfigError("SetCoords",
				"need %d coordinates per axis and ids, got cx=%d cy=%d cz=%d ids=%d",
				in.ntrace, len(cx), len(cy), len(cz), len(ids))
		}
	}
	return nil
}

// SetCoords replaces the trace positions and wavefield slots
func (in *Injection) SetCoords(cx, cy, cz []float32, ids []int32) error {
	if err := in.checkCoords(cx, cy, cz, ids); err != nil {
		return err
	}
	if err := in.cx.Set(cx); err != nil {
		return err
	}
	if err := in.cy.Set(cy); err != nil {
		return err
	}
	if err := in.cz.Set(cz); err != nil {
		return err
	}
	return in.ids.Set(ids)
}

func (in *Injection) NTrace() int {
	return in.ntrace
}

func (in *Injection) geometry(wfld *cvec.ComplexVector) kernels.Geometry {
	return kernels.Geometry{
		NTrace: in.ntrace,
		N:      wfld.N.Mem(),
		O:      wfld.O.Mem(),
		D:      wfld.D.Mem(),
		CX:     in.cx.Mem(),
		CY:     in.cy.Mem(),
		CZ:     in.cz.Mem(),
		IDs:    in.ids.Mem(),
	}
}

func (in *Injection) ChunkAware() {}

func (in *Injection) SetLaunch(grid, block device.Dim3) {
	in.launcher.SetLaunch(grid, block)
}

func (in *Injection) DeviceForward(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	if !add {
		if err := data.ZeroRange(w.Offset, w.Count); err != nil {
			return err
		}
	}
	return in.launcher.Forward(in.geometry(data), w.Offset, w.Count, model.Mat, data.Mat)
}

func (in *Injection) DeviceAdjoint(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return in.launcher.Adjoint(add, in.geometry(data), w.Offset, w.Count, model.Mat, data.Mat)
}

func (in *Injection) freeCoords() {
	in.cx.Free()
	in.cy.Free()
	in.cz.Free()
	in.ids.Free()
}

func (in *Injection) Free() {
	in.freeCoords()
	in.Operator.Free()
}
