package propagator

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/notargets/wem/cvec"
	"github.com/notargets/wem/device"
	"github.com/notargets/wem/hypercube"
	"github.com/notargets/wem/operator"
)

// FFT2 is the unitary 2-D Fourier transform over the first two axes of
// every slice. Data is staged through the host, so the adjoint and the
// inverse coincide.
type FFT2 struct {
	*operator.Operator

	nx, ny int
	fx, fy *fourier.CmplxFFT
	scale  complex128

	host, out []complex128
	col, tmp  []complex128
}

func NewFFT2(dev *device.Device, hyper *hypercube.Hypercube, cfg operator.Config) (*FFT2, error) {
	if hyper == nil || hyper.NDim() < 2 {
		return nil, operator.NewConfigError("NewFFT2", "need at least 2 axes")
	}
	if cfg.Name == "" {
		cfg.Name = "FFT2"
	}

	nx, ny := hyper.Axis(0).N, hyper.Axis(1).N
	f := &FFT2{
		nx:    nx,
		ny:    ny,
		fx:    fourier.NewCmplxFFT(nx),
		fy:    fourier.NewCmplxFFT(ny),
		scale: complex(1/math.Sqrt(float64(nx*ny)), 0),
		host:  make([]complex128, hyper.N123()),
		out:   make([]complex128, hyper.N123()),
		col:   make([]complex128, ny),
		tmp:   make([]complex128, max(nx, ny)),
	}
	var err error
	if f.Operator, err = operator.New(dev, hyper, hyper, f, cfg); err != nil {
		return nil, err
	}
	return f, nil
}

// transform applies the 2-D transform to every nx*ny slice of vals in place
func (f *FFT2) transform(vals []complex128, inverse bool) {
	apply := func(t *fourier.CmplxFFT, dst, src []complex128) {
		if inverse {
			t.Sequence(dst, src)
		} else {
			t.Coefficients(dst, src)
		}
	}

	slice := f.nx * f.ny
	row := f.tmp[:f.nx]
	col := f.tmp[:f.ny]
	for base := 0; base < len(vals); base += slice {
		for iy := 0; iy < f.ny; iy++ {
			r := vals[base+iy*f.nx : base+(iy+1)*f.nx]
			apply(f.fx, row, r)
			copy(r, row)
		}
		for ix := 0; ix < f.nx; ix++ {
			for iy := 0; iy < f.ny; iy++ {
				f.col[iy] = vals[base+ix+iy*f.nx]
			}
			apply(f.fy, col, f.col)
			for iy := 0; iy < f.ny; iy++ {
				vals[base+ix+iy*f.nx] = col[iy] * f.scale
			}
		}
	}
}

// run computes out (+)= T in through the host
func (f *FFT2) run(inverse, add bool, in, out *cvec.ComplexVector) error {
	if err := in.Download(f.host, 0); err != nil {
		return err
	}
	f.transform(f.host, inverse)
	if add {
		if err := out.Download(f.out, 0); err != nil {
			return err
		}
		for i, v := range f.host {
			f.out[i] += v
		}
		return out.Upload(f.out, 0)
	}
	return out.Upload(f.host, 0)
}

func (f *FFT2) DeviceForward(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return f.run(false, add, model, data)
}

func (f *FFT2) DeviceAdjoint(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return f.run(true, add, data, model)
}

func (f *FFT2) DeviceInverse(add bool, model, data *cvec.ComplexVector, w operator.Window) error {
	return f.run(true, add, data, model)
}
