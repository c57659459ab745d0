package propagator

import (
	"fmt"

	"github.com/notargets/wem/cvec"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/operator"
	"github.com/notargets/wem/param"
)

// PSPI is one phase-shift-plus-interpolation depth step over a (nx, ny, nw,
// ns) wavefield:
//
//	A = sum_i S_i F' P_i F
//
// F is the 2-D FFT, P_i the phase shift with reference slowness i and S_i
// the selector of the cells labeled i at the current depth.
type PSPI struct {
	*operator.Operator

	fft  *FFT2
	ps   *PhaseShift
	sel  *Selector
	ref  *RefSampler
	bufs *cvec.Map

	depth int
	nref  int
}

// NewPSPI reads nref (default 1) and eps (default 0) from par. The depth
// step is the sampling of the slowness depth axis.
func NewPSPI(dev *device.Device, domain *hypercube.Hypercube, slow *hypercube.ComplexReg,
	par *param.Params, cfg operator.Config) (*PSPI, error) {
	if err := requireDims("NewPSPI", domain, 4, "domain"); err != nil {
		return nil, err
	}
	if slow == nil {
		return nil, operator.NewConfigError("NewPSPI", "nil slowness")
	}
	if err := requireDims("NewPSPI", slow.Hyper(), 4, "slowness"); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		if domain.Axis(i).N != slow.Hyper().Axis(i).N {
			return nil, operator.NewConfigError("NewPSPI",
				"slowness axis %d has %d samples, wavefield has %d", i, slow.Hyper().Axis(i).N, domain.Axis(i).N)
		}
	}
	nref, err := par.Int("nref", 1)
	if err != nil {
		return nil, operator.NewConfigError("NewPSPI", "%v", err)
	}
	eps, err := par.Float("eps", 0)
	if err != nil {
		return nil, operator.NewConfigError("NewPSPI", "%v", err)
	}
	if cfg.Name == "" {
		cfg.Name = "PSPI"
	}

	p := &PSPI{nref: nref}
	if p.ref, err = NewRefSampler(slow, nref); err != nil {
		return nil, operator.NewConfigError("NewPSPI", "%v", err)
	}
	if p.bufs, err = cvec.NewMap(dev, domain, cfg.Grid, cfg.Block, "kdom", "tmp", "tmp2"); err != nil {
		return nil, err
	}

	// Stages share the scratch buffers instead of allocating their own
	sub := func(name string) operator.Config {
		return operator.Config{
			Grid:   cfg.Grid,
			Block:  cfg.Block,
			Model:  p.bufs.Get("tmp"),
			Data:   p.bufs.Get("tmp2"),
			Logger: cfg.Logger,
			Name:   cfg.Name + "/" + name,
		}
	}
	if p.fft, err = NewFFT2(dev, domain, sub("FFT2")); err != nil {
		p.free()
		return nil, err
	}
	if p.ps, err = NewPhaseShift(dev, domain, slow.Hyper().Axis(3).D, eps, sub("PhaseShift")); err != nil {
		p.free()
		return nil, err
	}
	if p.sel, err = NewSelector(dev, domain, sub("Selector")); err != nil {
		p.free()
		return nil, err
	}
	if p.Operator, err = operator.New(dev, domain, domain, p, cfg); err != nil {
		p.free()
		return nil, err
	}
	if err = p.SetDepth(0); err != nil {
		p.Free()
		return nil, err
	}
	return p, nil
}

// SetDepth selects the slowness slice used by the next application
func (p *PSPI) SetDepth(iz int) error {
	if iz < 0 || iz >= p.ref.NZ() {
		return operator.NewConfigError("SetDepth", "depth %d outside [0, %d)", iz, p.ref.NZ())
	}
	if err := p.sel.SetLabels(p.ref.RefLabels(iz)); err != nil {
		return err
	}
	p.depth = iz
	return nil
}

func (p *PSPI) Depth() int {
	return p.depth
}

func (p *PSPI) NRef() int {
	return p.nref
}

func (p *PSPI) NZ() int {
	return p.ref.NZ()
}

func (p *PSPI) SetDirection(dir Direction) {
	p.ps.SetDirection(dir)
}

func (p *PSPI) SetLaunch(grid, block device.Dim3) {
	p.fft.SetGrid(grid)
	p.fft.SetBlock(block)
	p.ps.SetGrid(grid)
	p.ps.SetBlock(block)
	p.sel.SetGrid(grid)
	p.sel.SetBlock(block)
	p.bufs.SetLaunch(grid, block)
}

func (p *PSPI) useRef(iref int) error {
	if err := p.ps.SetSlow(p.ref.RefSlow(p.depth, iref)); err != nil {
		return fmt.Errorf("reference %d at depth %d: %w", iref, p.depth, err)
	}
	p.sel.SetValue(iref)
	return nil
}

func (p *PSPI) DeviceForward(add bool, model, data *cvec.ComplexVector, _ operator.Window) error {
	full := whole(p.Domain())
	kdom, tmp, tmp2 := p.bufs.Get("kdom"), p.bufs.Get("tmp"), p.bufs.Get("tmp2")

	if err := p.fft.DeviceForward(false, model, kdom, full); err != nil {
		return err
	}
	if !add {
		if err := data.Zero(); err != nil {
			return err
		}
	}
	for iref := 0; iref < p.nref; iref++ {
		if err := p.useRef(iref); err != nil {
			return err
		}
		if err := p.ps.DeviceForward(false, kdom, tmp, full); err != nil {
			return err
		}
		if err := p.fft.DeviceAdjoint(false, tmp2, tmp, full); err != nil {
			return err
		}
		if err := p.sel.DeviceForward(true, tmp2, data, full); err != nil {
			return err
		}
	}
	return nil
}

func (p *PSPI) DeviceAdjoint(add bool, model, data *cvec.ComplexVector, _ operator.Window) error {
	full := whole(p.Domain())
	kacc, tmp, tmp2 := p.bufs.Get("kdom"), p.bufs.Get("tmp"), p.bufs.Get("tmp2")

	if err := kacc.Zero(); err != nil {
		return err
	}
	for iref := 0; iref < p.nref; iref++ {
		if err := p.useRef(iref); err != nil {
			return err
		}
		if err := p.sel.DeviceAdjoint(false, tmp2, data, full); err != nil {
			return err
		}
		if err := p.fft.DeviceForward(false, tmp2, tmp, full); err != nil {
			return err
		}
		if err := p.ps.DeviceAdjoint(true, kacc, tmp, full); err != nil {
			return err
		}
	}
	if !add {
		if err := model.Zero(); err != nil {
			return err
		}
	}
	return p.fft.DeviceAdjoint(true, model, kacc, full)
}

func (p *PSPI) free() {
	if p.fft != nil {
		p.fft.Free()
	}
	if p.ps != nil {
		p.ps.Free()
	}
	if p.sel != nil {
		p.sel.Free()
	}
	p.bufs.Free()
}

func (p *PSPI) Free() {
	if p.Freed() {
		return
	}
	p.free()
	p.Operator.Free()
}
