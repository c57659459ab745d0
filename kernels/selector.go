package kernels

import (
	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
)

// out = (add ? out : 0) + (labels[i mod nlab] == value ? in : 0)
const selectorSource = `
@kernel void wemSelect(const int_t nb, const int_t nt,
                       const int_t add, const int_t off, const int_t count,
                       const int_t nlab, const int_t value,
                       const int_t *labels,
                       const real_t *in, real_t *out) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      GRID_STRIDE(j, count) {
        const int_t i = off + j;
        real_t re = REAL_ZERO;
        real_t im = REAL_ZERO;
        if (labels[i % nlab] == value) {
          re = RE(in, i);
          im = IM(in, i);
        }
        if (add) {
          RE(out, i) += re;
          IM(out, i) += im;
        } else {
          RE(out, i) = re;
          IM(out, i) = im;
        }
      }
    }
  }
}
`

// Selector masks a wavefield by a label volume that repeats over the
// slowest axes
type Selector struct {
	*Launcher
}

func NewSelector(dev *device.Device, grid, block device.Dim3) (*Selector, error) {
	l, err := NewLauncher(dev, "wemSelect", selectorSource, grid, block)
	if err != nil {
		return nil, err
	}
	return &Selector{l}, nil
}

// Select applies the mask to elements [off, off+count) of in into out.
// The projection is its own adjoint.
func (s *Selector) Select(add bool, off, count, nlab, value int,
	labels, in, out *gocca.OCCAMemory) error {
	return s.Run(boolArg(add), int32(off), int32(count), int32(nlab), int32(value),
		labels, in, out)
}
