package operator

import (
	"context"
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/notargets/wem/hypercube"
)

// DotTest checks <A m, d> == <m, A' d> on random vectors, first with
// add=false and then again accumulating into the same outputs. Both relative
// errors are returned; err is a *DotTestError for the first one over the
// operator's tolerance.
func (op *Operator) DotTest(verbose bool) (errNoAdd, errAdd float64, err error) {
	if op.freed {
		return 0, 0, op.freedError("DotTest")
	}
	m1 := hypercube.NewComplexReg(op.domain)
	d1 := hypercube.NewComplexReg(op.rng)
	m := m1.Clone()
	d := d1.Clone()
	m.Random()
	d.Random()

	level := slog.LevelDebug
	if verbose {
		level = slog.LevelInfo
	}

	run := func(add bool) (float64, error) {
		if err := op.Forward(add, m, d1); err != nil {
			return 0, err
		}
		if err := op.Adjoint(add, m1, d); err != nil {
			return 0, err
		}
		mAtd, err := m.Dot(m1)
		if err != nil {
			return 0, err
		}
		dAm, err := d.Dot(d1)
		if err != nil {
			return 0, err
		}
		rel := relativeError(cmplx.Conj(dAm), mAtd)
		op.logger.Log(context.Background(), level, "dot test",
			"add", add,
			"<m,A'd>", mAtd,
			"<Am,d>", cmplx.Conj(dAm),
			"relErr", rel)
		return rel, nil
	}

	if errNoAdd, err = run(false); err != nil {
		return 0, 0, err
	}
	if errAdd, err = run(true); err != nil {
		return errNoAdd, 0, err
	}

	switch {
	case errNoAdd > op.tolerance:
		err = &DotTestError{Add: false, RelErr: errNoAdd, Tolerance: op.tolerance}
	case errAdd > op.tolerance:
		err = &DotTestError{Add: true, RelErr: errAdd, Tolerance: op.tolerance}
	}
	if err != nil {
		op.logger.Warn("dot test failed", "err", err)
	}
	return errNoAdd, errAdd, err
}

// relativeError is |Re(am/mad) - 1|; two zero products are consistent
func relativeError(am, mad complex128) float64 {
	if am == 0 && mad == 0 {
		return 0
	}
	if mad == 0 {
		return math.Inf(1)
	}
	return math.Abs(real(am/mad) - 1)
}
