package kernels

import (
	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
)

const vectorSource = `
@kernel void wemVecZero(const int_t nb, const int_t nt,
                        const int_t off, const int_t count,
                        real_t *a) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      GRID_STRIDE(j, count) {
        RE(a, off + j) = REAL_ZERO;
        IM(a, off + j) = REAL_ZERO;
      }
    }
  }
}

@kernel void wemVecCopy(const int_t nb, const int_t nt,
                        const int_t count,
                        const real_t *src, real_t *dst) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      GRID_STRIDE(i, 2*count) {
        dst[i] = src[i];
      }
    }
  }
}

@kernel void wemVecAdd(const int_t nb, const int_t nt,
                       const int_t count,
                       const real_t *src, real_t *dst) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      GRID_STRIDE(i, 2*count) {
        dst[i] += src[i];
      }
    }
  }
}

@kernel void wemVecScale(const int_t nb, const int_t nt,
                         const int_t count,
                         const real_t cr, const real_t ci,
                         real_t *a) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      GRID_STRIDE(i, count) {
        const real_t re = RE(a, i);
        const real_t im = IM(a, i);
        RE(a, i) = cr*re - ci*im;
        IM(a, i) = cr*im + ci*re;
      }
    }
  }
}
`

// Vector holds the elementwise kernels of a device complex buffer
type Vector struct {
	zero, copy, add, scale *Launcher
}

func NewVector(dev *device.Device, grid, block device.Dim3) (*Vector, error) {
	var (
		v   Vector
		err error
	)
	if v.zero, err = NewLauncher(dev, "wemVecZero", vectorSource, grid, block); err != nil {
		return nil, err
	}
	if v.copy, err = NewLauncher(dev, "wemVecCopy", vectorSource, grid, block); err != nil {
		return nil, err
	}
	if v.add, err = NewLauncher(dev, "wemVecAdd", vectorSource, grid, block); err != nil {
		return nil, err
	}
	if v.scale, err = NewLauncher(dev, "wemVecScale", vectorSource, grid, block); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vector) SetLaunch(grid, block device.Dim3) {
	for _, l := range []*Launcher{v.zero, v.copy, v.add, v.scale} {
		l.SetLaunch(grid, block)
	}
}

// Zero clears count complex elements starting at element off
func (v *Vector) Zero(a *gocca.OCCAMemory, off, count int) error {
	return v.zero.Run(int32(off), int32(count), a)
}

// Copy sets dst = src over count complex elements
func (v *Vector) Copy(dst, src *gocca.OCCAMemory, count int) error {
	return v.copy.Run(int32(count), src, dst)
}

// Add sets dst += src over count complex elements
func (v *Vector) Add(dst, src *gocca.OCCAMemory, count int) error {
	return v.add.Run(int32(count), src, dst)
}

// Scale multiplies count complex elements by c
func (v *Vector) Scale(a *gocca.OCCAMemory, count int, c complex64) error {
	return v.scale.Run(int32(count), real(c), imag(c), a)
}
