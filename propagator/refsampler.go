package propagator

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/wem/hypercube"
)

// RefSampler reduces a laterally varying slowness (nx, ny, nw, nz) to nref
// reference slownesses per depth and frequency, and labels every (x, y, w)
// cell with its nearest reference
type RefSampler struct {
	nx, ny, nw, nz int
	nref           int

	// ref[iref + nref*(iw + nw*iz)]
	ref []complex64
	// labels[iz][ix + nx*(iy + ny*iw)]
	labels [][]int32
}

func NewRefSampler(slow *hypercube.ComplexReg, nref int) (*RefSampler, error) {
	if slow == nil || slow.Hyper().NDim() != 4 {
		return nil, fmt.Errorf("slowness must be a 4-D (nx, ny, nw, nz) volume")
	}
	if nref < 1 {
		return nil, fmt.Errorf("nref must be positive, got %d", nref)
	}
	ns := slow.Hyper().Ns()
	r := &RefSampler{
		nx:     ns[0],
		ny:     ns[1],
		nw:     ns[2],
		nz:     ns[3],
		nref:   nref,
		ref:    make([]complex64, nref*ns[2]*ns[3]),
		labels: make([][]int32, ns[3]),
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for iz := 0; iz < r.nz; iz++ {
		g.Go(func() error {
			return r.sampleDepth(slow.Vals(), iz)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}

// sampleDepth fills the references and labels of depth iz
func (r *RefSampler) sampleDepth(vals []complex128, iz int) error {
	nxy := r.nx * r.ny
	re := make([]float64, nxy)
	inds := make([]int, nxy)
	r.labels[iz] = make([]int32, nxy*r.nw)
	for iw := 0; iw < r.nw; iw++ {
		slice := vals[(iw+r.nw*iz)*nxy : (iw+r.nw*iz+1)*nxy]
		for i, s := range slice {
			if cmplx.IsNaN(s) || cmplx.IsInf(s) {
				return fmt.Errorf("slowness at (%d, %d, %d, %d) is not finite", i%r.nx, i/r.nx, iw, iz)
			}
			re[i] = real(s)
		}
		floats.Argsort(re, inds)

		refs := r.ref[r.nref*(iw+r.nw*iz) : r.nref*(iw+r.nw*iz+1)]
		for iref := range refs {
			q := stat.Quantile((float64(iref)+0.5)/float64(r.nref), stat.Empirical, re, nil)
			pos := sort.SearchFloat64s(re, q)
			refs[iref] = complex64(slice[inds[min(pos, nxy-1)]])
		}

		labels := r.labels[iz][iw*nxy : (iw+1)*nxy]
		for i, s := range slice {
			labels[i] = nearest(s, refs)
		}
	}
	return nil
}

// nearest returns the first reference closest to s
func nearest(s complex128, refs []complex64) int32 {
	best, bestDist := 0, cmplx.Abs(s-complex128(refs[0]))
	for i := 1; i < len(refs); i++ {
		if d := cmplx.Abs(s - complex128(refs[i])); d < bestDist {
			best, bestDist = i, d
		}
	}
	return int32(best)
}

func (r *RefSampler) NRef() int {
	return r.nref
}

func (r *RefSampler) NZ() int {
	return r.nz
}

// RefSlow returns the per-frequency slowness of reference iref at depth iz
func (r *RefSampler) RefSlow(iz, iref int) []complex64 {
	out := make([]complex64, r.nw)
	for iw := range out {
		out[iw] = r.ref[iref+r.nref*(iw+r.nw*iz)]
	}
	return out
}

// RefLabels returns the (nx, ny, nw) label volume of depth iz
func (r *RefSampler) RefLabels(iz int) []int32 {
	return r.labels[iz]
}
