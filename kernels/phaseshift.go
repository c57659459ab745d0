package kernels

import (
	"github.com/notargets/gocca"
	"github.com/notargets/wem/device"
)

// PhaseMode selects which operator the phase-shift kernel applies
type PhaseMode int32

const (
	PhaseForward PhaseMode = iota
	PhaseAdjoint
	PhaseInverse
)

// The wavefield is (kx, ky, w, s). Frequency is w = 2*pi*(o[2] + iw*d[2]);
// wavenumbers follow FFT ordering. The phase is computed in double:
//
//	kz = sqrt((w + i*eps)^2 * s(w)^2 - kx^2 - ky^2), Im(kz) >= 0
//	P  = exp(i*sgn*Re(kz)*dz - Im(kz)*dz)
//
// forward multiplies by P, adjoint by conj(P), inverse by 1/P.
const phaseShiftSource = `
@kernel void wemPhaseShift(const int_t nb, const int_t nt,
                           const int_t mode, const int_t add,
                           const int_t off, const int_t count,
                           const int_t *n, const real_t *o, const real_t *d,
                           const real_t *slow,
                           const real_t dz, const real_t eps, const real_t sgn,
                           const real_t *in, real_t *out) {
  for (int_t b = 0; b < nb; ++b; @outer) {
    for (int_t t = 0; t < nt; ++t; @inner) {
      const int_t nx = n[0];
      const int_t ny = n[1];
      const int_t nw = n[2];
      GRID_STRIDE(j, count) {
        const int_t i = off + j;
        const int_t ix = i % nx;
        const int_t iy = (i / nx) % ny;
        const int_t iw = (i / (nx*ny)) % nw;

        const double kx = TWO_PI / (nx * (double) d[0]) * (ix < (nx + 1)/2 ? ix : ix - nx);
        const double ky = TWO_PI / (ny * (double) d[1]) * (iy < (ny + 1)/2 ? iy : iy - ny);
        const double w = TWO_PI * ((double) o[2] + iw * (double) d[2]);
        const double e = (double) eps;

        // (w + i e)^2
        const double wr = w*w - e*e;
        const double wi = 2.0*w*e;
        // s^2
        const double sr = (double) RE(slow, iw);
        const double si = (double) IM(slow, iw);
        const double s2r = sr*sr - si*si;
        const double s2i = 2.0*sr*si;

        const double ar = wr*s2r - wi*s2i - kx*kx - ky*ky;
        const double ai = wr*s2i + wi*s2r;
        const double r = sqrt(ar*ar + ai*ai);
        double kzr = sqrt(fmax(0.0, 0.5*(r + ar)));
        double kzi = sqrt(fmax(0.0, 0.5*(r - ar)));
        if (ai < 0.0) kzi = -kzi;
        if (kzi < 0.0) {
          kzr = -kzr;
          kzi = -kzi;
        }

        const double arg = (double) sgn * kzr * (double) dz;
        const double amp = exp(-kzi * (double) dz);
        double pr = amp * cos(arg);
        double pi = amp * sin(arg);
        if (mode == 1) {
          pi = -pi;
        } else if (mode == 2) {
          pr = cos(arg) / amp;
          pi = -sin(arg) / amp;
        }

        const double vr = (double) RE(in, i);
        const double vi = (double) IM(in, i);
        const real_t yr = (real_t) (vr*pr - vi*pi);
        const real_t yi = (real_t) (vr*pi + vi*pr);
        if (add) {
          RE(out, i) += yr;
          IM(out, i) += yi;
        } else {
          RE(out, i) = yr;
          IM(out, i) = yi;
        }
      }
    }
  }
}
`

// PhaseShift extrapolates a wavenumber-domain wavefield by one depth step
type PhaseShift struct {
	*Launcher
}

func NewPhaseShift(dev *device.Device, grid, block device.Dim3) (*PhaseShift, error) {
	l, err := NewLauncher(dev, "wemPhaseShift", phaseShiftSource, grid, block)
	if err != nil {
		return nil, err
	}
	return &PhaseShift{l}, nil
}

// PhaseParams are the scalar and device inputs of one depth step
type PhaseParams struct {
	N, O, D *gocca.OCCAMemory
	Slow    *gocca.OCCAMemory
	DZ      float32
	Eps     float32
	// Sign is +1 for downward and -1 for upward extrapolation
	Sign float32
}

// Apply runs mode over elements [off, off+count) of in into out
func (ps *PhaseShift) Apply(mode PhaseMode, add bool, p PhaseParams, off, count int,
	in, out *gocca.OCCAMemory) error {
	return ps.Run(int32(mode), boolArg(add), int32(off), int32(count),
		p.N, p.O, p.D, p.Slow, p.DZ, p.Eps, p.Sign, in, out)
}
