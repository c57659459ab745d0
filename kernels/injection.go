package kernels

import (
	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
)

// Traces are (nw, ntr); the wavefield is (nx, ny, nw, ns, nz) described by
// the device axis arrays n, o, d. Only wavefield elements in
// [off, off+count) are touched. Corners outside the grid are skipped.
const injectionSource = `
#define INJECT_CORNERS(BODY)                                          \
  const int_t is = ids[itr];                                          \
  if (is >= 0 && is < ns) {                                           \
    const real_t fx = (cx[itr] - o[0]) / d[0];                        \
    const real_t fy = (cy[itr] - o[1]) / d[1];                        \
    const real_t fz = (cz[itr] - o[4]) / d[4];                        \
    const int_t ix = (int_t) floor(fx);                               \
    const int_t iy = (int_t) floor(fy);                               \
    const int_t iz = (int_t) floor(fz);                               \
    const real_t wx = fx - ix;                                        \
    const real_t wy = fy - iy;                                        \
    const real_t wz = fz - iz;                                        \
    for (int_t kz = 0; kz < 2; ++kz) {                                \
      const int_t jz = iz + kz;                                       \
      if (jz < 0 || jz >= nz) continue;                               \
      const real_t az = kz ? wz : REAL_ONE - wz;                      \
      for (int_t ky = 0; ky < 2; ++ky) {                              \
        const int_t jy = iy + ky;                                     \
        if (jy < 0 || jy >= ny) continue;                             \
        const real_t ay = ky ? wy : REAL_ONE - wy;                    \
        for (int_t kx = 0; kx < 2; ++kx) {                            \
          const int_t jx = ix + kx;                                   \
          if (jx < 0 || jx >= nx) continue;                           \
          const real_t a = (kx ? wx : REAL_ONE - wx) * ay * az;       \
          const int_t idx = jx + nx*(jy + ny*(iw + nw*(is + ns*jz))); \
          if (idx < off || idx >= off + count) continue;              \
          BODY                                                        \
        }                                                             \
      }                                                               \
    }                                                                 \
  }

@kernel void wemInjectForward(const int_t nb, const int_t nt,
                              const int_t ntr, const int_t off, const int_t count,
                              const int_t *n, const real_t *o, const real_t *d,
                              const real_t *cx, const real_t *cy, const real_t *cz,
                              const int_t *ids,
                              const real_t *model, real_t *data) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      const int_t nx = n[0];
      const int_t ny = n[1];
      const int_t nw = n[2];
      const int_t ns = n[3];
      const int_t nz = n[4];
      // one frequency per thread; traces may share cells so they run serially
      GRID_STRIDE(iw, nw) {
        for (int_t itr = 0; itr < ntr; ++itr) {
          const real_t vr = RE(model, iw + itr*nw);
          const real_t vi = IM(model, iw + itr*nw);
          INJECT_CORNERS(
            RE(data, idx) += a*vr;
            IM(data, idx) += a*vi;
          )
        }
      }
    }
  }
}

@kernel void wemInjectAdjoint(const int_t nb, const int_t nt,
                              const int_t add,
                              const int_t ntr, const int_t off, const int_t count,
                              const int_t *n, const real_t *o, const real_t *d,
                              const real_t *cx, const real_t *cy, const real_t *cz,
                              const int_t *ids,
                              real_t *model, const real_t *data) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      const int_t nx = n[0];
      const int_t ny = n[1];
      const int_t nw = n[2];
      const int_t ns = n[3];
      const int_t nz = n[4];
      GRID_STRIDE(j, nw*ntr) {
        const int_t iw = j % nw;
        const int_t itr = j / nw;
        real_t sr = REAL_ZERO;
        real_t si = REAL_ZERO;
        INJECT_CORNERS(
          sr += a*RE(data, idx);
          si += a*IM(data, idx);
        )
        if (add) {
          RE(model, j) += sr;
          IM(model, j) += si;
        } else {
          RE(model, j) = sr;
          IM(model, j) = si;
        }
      }
    }
  }
}
`

// Injection scatters traces into a wavefield with trilinear weights and
// gathers them back
type Injection struct {
	forward, adjoint *Launcher
}

func NewInjection(dev *device.Device, grid, block device.Dim3) (*Injection, error) {
	fwd, err := NewLauncher(dev, "wemInjectForward", injectionSource, grid, block)
	if err != nil {
		return nil, err
	}
	adj, err := NewLauncher(dev, "wemInjectAdjoint", injectionSource, grid, block)
	if err != nil {
		return nil, err
	}
	return &Injection{forward: fwd, adjoint: adj}, nil
}

func (in *Injection) SetLaunch(grid, block device.Dim3) {
	in.forward.SetLaunch(grid, block)
	in.adjoint.SetLaunch(grid, block)
}

// Geometry is the device-resident description shared by both directions
type Geometry struct {
	NTrace     int
	N, O, D    *gocca.OCCAMemory
	CX, CY, CZ *gocca.OCCAMemory
	IDs        *gocca.OCCAMemory
}

// Forward accumulates the traces into data elements [off, off+count).
// The caller clears the window first when overwriting.
func (in *Injection) Forward(g Geometry, off, count int, model, data *gocca.OCCAMemory) error {
	return in.forward.Run(int32(g.NTrace), int32(off), int32(count),
		g.N, g.O, g.D, g.CX, g.CY, g.CZ, g.IDs, model, data)
}

// Adjoint gathers data elements [off, off+count) into the traces
func (in *Injection) Adjoint(add bool, g Geometry, off, count int, model, data *gocca.OCCAMemory) error {
	return in.adjoint.Run(boolArg(add), int32(g.NTrace), int32(off), int32(count),
		g.N, g.O, g.D, g.CX, g.CY, g.CZ, g.IDs, model, data)
}
