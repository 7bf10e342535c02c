package weakform

import "github.com/notargets/FEMKernel/tensor"

// TangentTerm is ∂(coefficient of Test)/∂Trial. Terms whose trial atom is a
// time rate are scaled by the driver's time-integration weight at evaluation
// time, so the same tangent serves every step size.
type TangentTerm struct {
	Test         tensor.Atom
	Trial        tensor.Atom
	TimeWeighted bool
	Coef         *tensor.Poly
}

// Tangent is the symbolic Jacobian of a residual.
type Tangent struct {
	Name   string
	Target Target
	Terms  []TangentTerm
}

// Linearize differentiates every residual coefficient with respect to each
// internal field atom it contains. Atoms absent from a coefficient produce no
// term.
func Linearize(r *Residual) *Tangent {
	tan := &Tangent{Name: r.Name, Target: r.Target}
	for _, term := range r.Terms {
		for _, a := range term.Coef.Atoms() {
			if a.Kind != tensor.FieldAtom || a.External {
				continue
			}
			d := term.Coef.Diff(a)
			if d.IsZero() {
				continue
			}
			tan.Terms = append(tan.Terms, TangentTerm{
				Test:         term.Test,
				Trial:        a,
				TimeWeighted: a.Rate,
				Coef:         d,
			})
		}
	}
	return tan
}

// Couples reports whether any tangent term links a test function of
// testField to a trial atom of trialField.
func (t *Tangent) Couples(testField, trialField string) bool {
	for _, term := range t.Terms {
		if term.Test.Name == testField && term.Trial.Name == trialField {
			return true
		}
	}
	return false
}
