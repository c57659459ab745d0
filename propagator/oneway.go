package propagator

import (
	"github.com/notargets/wem/cvec"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/operator"
	"github.com/notargets/wem/param"
)

// OneWay continues a (nx, ny, nw, ns) wavefield through every depth of the
// slowness model with one PSPI step per depth. Forward records the wavefield
// at each depth; the result is the wavefield at the last depth reached.
type OneWay struct {
	*operator.Operator

	pspi  *PSPI
	dir   Direction
	wfld  *hypercube.ComplexReg
	bufs  *cvec.Map
	order []int
}

// NewDownward continues from the surface (iz = 0) to the bottom
func NewDownward(dev *device.Device, domain *hypercube.Hypercube, slow *hypercube.ComplexReg,
	par *param.Params, cfg operator.Config) (*OneWay, error) {
	if cfg.Name == "" {
		cfg.Name = "Downward"
	}
	return newOneWay(dev, domain, slow, par, cfg, Down)
}

// NewUpward continues from the bottom to the surface
func NewUpward(dev *device.Device, domain *hypercube.Hypercube, slow *hypercube.ComplexReg,
	par *param.Params, cfg operator.Config) (*OneWay, error) {
	if cfg.Name == "" {
		cfg.Name = "Upward"
	}
	return newOneWay(dev, domain, slow, par, cfg, Up)
}

func newOneWay(dev *device.Device, domain *hypercube.Hypercube, slow *hypercube.ComplexReg,
	par *param.Params, cfg operator.Config, dir Direction) (*OneWay, error) {
	stepCfg := cfg
	stepCfg.Name = cfg.Name + "/PSPI"
	stepCfg.Model, stepCfg.Data = nil, nil
	pspi, err := NewPSPI(dev, domain, slow, par, stepCfg)
	if err != nil {
		return nil, err
	}
	pspi.SetDirection(dir)

	nz := pspi.NZ()
	axes := append(domain.Axes(), slow.Hyper().Axis(3))
	wh, err := hypercube.New(axes...)
	if err != nil {
		pspi.Free()
		return nil, operator.NewConfigError("NewOneWay", "%v", err)
	}

	ow := &OneWay{
		pspi:  pspi,
		dir:   dir,
		wfld:  hypercube.NewComplexReg(wh),
		order: make([]int, nz),
	}
	for i := range ow.order {
		if dir == Down {
			ow.order[i] = i
		} else {
			ow.order[i] = nz - 1 - i
		}
	}
	if ow.bufs, err = cvec.NewMap(dev, domain, cfg.Grid, cfg.Block, "cur", "next"); err != nil {
		pspi.Free()
		return nil, err
	}
	if ow.Operator, err = operator.New(dev, domain, domain, ow, cfg); err != nil {
		ow.bufs.Free()
		pspi.Free()
		return nil, err
	}
	return ow, nil
}

// Wavefield is the 5-D (nx, ny, nw, ns, nz) record of the last forward call
func (ow *OneWay) Wavefield() *hypercube.ComplexReg {
	return ow.wfld
}

func (ow *OneWay) Direction() Direction {
	return ow.dir
}

func (ow *OneWay) SetLaunch(grid, block device.Dim3) {
	ow.pspi.SetGrid(grid)
	ow.pspi.SetBlock(block)
	ow.bufs.SetLaunch(grid, block)
}

func (ow *OneWay) store(iz int, v *cvec.ComplexVector) error {
	n := v.NElem
	return v.Download(ow.wfld.Vals()[iz*n:(iz+1)*n], 0)
}

func (ow *OneWay) DeviceForward(add bool, model, data *cvec.ComplexVector, _ operator.Window) error {
	full := whole(ow.Domain())
	cur, next := ow.bufs.Get("cur"), ow.bufs.Get("next")

	if err := cur.CopyFrom(model); err != nil {
		return err
	}
	if err := ow.store(ow.order[0], cur); err != nil {
		return err
	}
	for step := 1; step < len(ow.order); step++ {
		if err := ow.pspi.SetDepth(ow.order[step-1]); err != nil {
			return err
		}
		if err := ow.pspi.DeviceForward(false, cur, next, full); err != nil {
			return err
		}
		cur, next = next, cur
		if err := ow.store(ow.order[step], cur); err != nil {
			return err
		}
	}
	if add {
		return data.Add(cur)
	}
	return data.CopyFrom(cur)
}

func (ow *OneWay) DeviceAdjoint(add bool, model, data *cvec.ComplexVector, _ operator.Window) error {
	full := whole(ow.Domain())
	cur, next := ow.bufs.Get("cur"), ow.bufs.Get("next")

	if err := cur.CopyFrom(data); err != nil {
		return err
	}
	for step := len(ow.order) - 1; step >= 1; step-- {
		if err := ow.pspi.SetDepth(ow.order[step-1]); err != nil {
			return err
		}
		if err := ow.pspi.DeviceAdjoint(false, next, cur, full); err != nil {
			return err
		}
		cur, next = next, cur
	}
	if add {
		return model.Add(cur)
	}
	return model.CopyFrom(cur)
}

func (ow *OneWay) Free() {
	if ow.Freed() {
		return
	}
	ow.pspi.Free()
	ow.bufs.Free()
	ow.Operator.Free()
}
