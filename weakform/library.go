package weakform

import "github.com/notargets/FEMKernel/tensor"

// Coefficient names used by the standard integrands below. Their values are
// bound when kernels are compiled.
const (
	Lambda       = "lambda" // first Lamé constant
	Mu           = "mu"     // shear modulus
	Alpha        = "alpha"  // thermal expansion coefficient
	RefTemp      = "T0"     // stress-free temperature
	Capacity     = "rhoc"   // volumetric heat capacity
	Conductivity = "kappa"
	Film         = "h" // convective film coefficient
	PenaltyCoef  = "penalty"
	PressureCoef = "p"
)

var slots = []tensor.Index{tensor.I, tensor.J, tensor.K, tensor.L}

// Strain is ε_ij of the trial displacement.
func Strain(u *tensor.Field) *tensor.Tensor { return tensor.SymGrad("eps", u, false) }

// Stress is σ_ij = λ ε_kk δ_ij + 2μ ε_ij, minus the thermal term
// (3λ+2μ) α (T - T0) δ_ij when T is not nil.
func Stress(u, T *tensor.Field) *tensor.Tensor {
	i, j := tensor.I, tensor.J
	eps := Strain(u)
	terms := []tensor.Expr{
		tensor.Mul(tensor.Param(Lambda), tensor.Trace(eps), tensor.Delta(i, j)),
		tensor.Mul(tensor.Num(2), tensor.Param(Mu), eps.At(i, j)),
	}
	if T != nil {
		bulk := tensor.Add(tensor.Scale(3, tensor.Param(Lambda)), tensor.Scale(2, tensor.Param(Mu)))
		terms = append(terms, tensor.Neg(tensor.Mul(bulk, tensor.Param(Alpha),
			tensor.Sub(T.At(), tensor.Param(RefTemp)), tensor.Delta(i, j))))
	}
	return tensor.MustDefine("sigma", []tensor.Index{i, j}, tensor.Add(terms...))
}

// Elasticity is ∫ ε(δu):σ(u).
func Elasticity(u *tensor.Field) tensor.Expr {
	return tensor.Bilinear(tensor.SymGrad("deps", u, true).At(tensor.I, tensor.J),
		Stress(u, nil).At(tensor.I, tensor.J))
}

// Heat is ∫ δT ρc dT/dt + ∫ δT_,i κ T_,i.
func Heat(T *tensor.Field) tensor.Expr {
	return tensor.Add(
		tensor.Bilinear(T.Test(), tensor.Mul(tensor.Param(Capacity), T.At().Dt())),
		tensor.Bilinear(T.Test().D(tensor.I), tensor.Mul(tensor.Param(Conductivity), T.At().D(tensor.I))),
	)
}

// ThermoElasticity couples small-strain elasticity with thermal strain to
// transient heat conduction.
func ThermoElasticity(u, T *tensor.Field) tensor.Expr {
	mech := tensor.Bilinear(tensor.SymGrad("deps", u, true).At(tensor.I, tensor.J),
		Stress(u, T).At(tensor.I, tensor.J))
	return tensor.Add(mech, Heat(T))
}

// Convection is the film condition ∫ δT h (T - Text).
func Convection(T, ext *tensor.Field) tensor.Expr {
	return tensor.Bilinear(T.Test(), tensor.Mul(tensor.Param(Film), tensor.Sub(T.At(), ext.At())))
}

// Penalty weakly drives every component of f to zero: ∫ δf·(P f).
func Penalty(f *tensor.Field) tensor.Expr {
	idx := slots[:f.Rank]
	return tensor.Bilinear(f.Test(idx...), tensor.Mul(tensor.Param(PenaltyCoef), f.At(idx...)))
}

// Pressure applies a normal pressure load: ∫ δu_i p n_i.
func Pressure(u *tensor.Field) tensor.Expr {
	return tensor.Bilinear(u.Test(tensor.I), tensor.Mul(tensor.Param(PressureCoef), tensor.Normal(tensor.I)))
}
