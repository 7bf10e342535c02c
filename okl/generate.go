package okl

import (
	"fmt"
	"strings"

	"github.com/notargets/FEMKernel/kernel"
	"github.com/notargets/FEMKernel/weakform"
)

// KernelName turns a kernel's name into a valid OCCA identifier.
func KernelName(k *kernel.Kernel) string {
	var sb strings.Builder
	sb.WriteString("fem_")
	for _, c := range k.Name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// generator writes the body of one element kernel. The arithmetic mirrors
// kernel.Sequential term for term.
type generator struct {
	k  *kernel.Kernel
	sb strings.Builder
}

func (g *generator) line(indent int, format string, args ...interface{}) {
	g.sb.WriteString(strings.Repeat("\t", indent))
	g.sb.WriteString(fmt.Sprintf(format, args...))
	g.sb.WriteByte('\n')
}

// Source returns the full kernel text for k given the runner's signature.
func Source(k *kernel.Kernel, signature string) string {
	g := &generator{k: k}
	g.line(0, "@kernel void %s(\n\t%s\n) {", KernelName(k), signature)
	g.line(1, "for (int part = 0; part < NPART; ++part; @outer) {")
	g.line(2, "const real_t* X = X_PART(part);")
	g.line(2, "const real_t* U = U_PART(part);")
	g.line(2, "const real_t* V = V_PART(part);")
	if k.Layout.NExt > 0 {
		g.line(2, "const real_t* E = E_PART(part);")
	}
	g.line(2, "real_t* RES = RES_PART(part);")
	g.line(2, "real_t* TAN = TAN_PART(part);")
	g.line(2, "real_t* STATUS = STATUS_PART(part);")
	g.line(2, "for (int elem = 0; elem < KpartMax; ++elem; @inner) {")
	g.line(3, "if (elem < K[part]) {")
	g.cell(4)
	g.line(3, "}")
	g.line(2, "}")
	g.line(1, "}")
	g.line(0, "}")
	return g.sb.String()
}

func (g *generator) cell(n int) {
	k := g.k
	g.line(n, "const real_t* x = X + elem*NP*DIM;")
	g.line(n, "const real_t* u = U + elem*NP*NCOMP;")
	g.line(n, "const real_t* v = V + elem*NP*NCOMP;")
	if k.Layout.NExt > 0 {
		g.line(n, "const real_t* e = E + elem*NP*NEXT;")
	}
	g.line(n, "real_t* r = RES + elem*NDOF;")
	g.line(n, "real_t* kt = TAN + elem*NDOF*NDOF;")
	g.line(n, "real_t* st = STATUS + elem*2;")
	g.line(n, "for (int i = 0; i < NDOF; ++i) r[i] = REAL_ZERO;")
	g.line(n, "for (int i = 0; i < NDOF*NDOF; ++i) kt[i] = REAL_ZERO;")
	g.line(n, "st[0] = REAL_ZERO; st[1] = REAL_ZERO;")
	g.line(n, "real_t J[3][3], Inv[3][3], nrm[3], det;")
	g.line(n, "real_t grad[NP][DIM];")
	g.line(n, "real_t s[NSLOT+1];")
	g.line(n, "for (int q = 0; q < NQ; ++q) {")
	g.jacobian(n + 1)
	if k.Target == weakform.Domain {
		g.volume(n + 1)
	} else {
		g.facet(n + 1)
	}
	g.line(n+1, "if (!(det > REAL_ZERO)) { st[0] = REAL_ONE; st[1] = det; break; }")
	if k.Target == weakform.Domain {
		g.gradients(n + 1)
	}
	g.interpolate(n + 1)
	g.line(n+1, "const real_t wdet = W[0][q] * det;")
	g.residual(n + 1)
	g.tangent(n + 1)
	g.line(n, "}")
}

func (g *generator) jacobian(n int) {
	g.line(n, "for (int d = 0; d < 3; ++d) { nrm[d] = REAL_ZERO; for (int c = 0; c < 3; ++c) { J[d][c] = REAL_ZERO; Inv[d][c] = REAL_ZERO; } }")
	g.line(n, "for (int a = 0; a < NP; ++a) {")
	g.line(n+1, "for (int d = 0; d < DIM; ++d) {")
	g.line(n+2, "const real_t xa = x[a*DIM + d];")
	for rd := 0; rd < g.k.RefDim; rd++ {
		g.line(n+2, "J[d][%d] += xa * DN%d[a][q];", rd, rd)
	}
	g.line(n+1, "}")
	g.line(n, "}")
}

func (g *generator) volume(n int) {
	switch g.k.Layout.Dim {
	case 1:
		g.line(n, "det = J[0][0];")
		g.line(n, "Inv[0][0] = REAL_ONE / det;")
	case 2:
		g.line(n, "det = J[0][0]*J[1][1] - J[0][1]*J[1][0];")
		g.line(n, "{ const real_t id = REAL_ONE / det;")
		g.line(n, "Inv[0][0] = J[1][1]*id; Inv[0][1] = -J[0][1]*id;")
		g.line(n, "Inv[1][0] = -J[1][0]*id; Inv[1][1] = J[0][0]*id; }")
	case 3:
		g.line(n, "{ const real_t c00 = J[1][1]*J[2][2] - J[1][2]*J[2][1];")
		g.line(n, "const real_t c01 = J[1][2]*J[2][0] - J[1][0]*J[2][2];")
		g.line(n, "const real_t c02 = J[1][0]*J[2][1] - J[1][1]*J[2][0];")
		g.line(n, "det = J[0][0]*c00 + J[0][1]*c01 + J[0][2]*c02;")
		g.line(n, "const real_t id = REAL_ONE / det;")
		g.line(n, "Inv[0][0] = c00*id; Inv[1][0] = c01*id; Inv[2][0] = c02*id;")
		g.line(n, "Inv[0][1] = (J[0][2]*J[2][1] - J[0][1]*J[2][2])*id;")
		g.line(n, "Inv[1][1] = (J[0][0]*J[2][2] - J[0][2]*J[2][0])*id;")
		g.line(n, "Inv[2][1] = (J[0][1]*J[2][0] - J[0][0]*J[2][1])*id;")
		g.line(n, "Inv[0][2] = (J[0][1]*J[1][2] - J[0][2]*J[1][1])*id;")
		g.line(n, "Inv[1][2] = (J[0][2]*J[1][0] - J[0][0]*J[1][2])*id;")
		g.line(n, "Inv[2][2] = (J[0][0]*J[1][1] - J[0][1]*J[1][0])*id; }")
	}
}

func (g *generator) facet(n int) {
	switch g.k.Layout.Dim {
	case 1:
		g.line(n, "det = REAL_ONE;")
		return
	case 2:
		g.line(n, "nrm[0] = J[1][0]; nrm[1] = -J[0][0];")
		g.line(n, "det = sqrt(J[0][0]*J[0][0] + J[1][0]*J[1][0]);")
	case 3:
		g.line(n, "nrm[0] = J[1][0]*J[2][1] - J[2][0]*J[1][1];")
		g.line(n, "nrm[1] = J[2][0]*J[0][1] - J[0][0]*J[2][1];")
		g.line(n, "nrm[2] = J[0][0]*J[1][1] - J[1][0]*J[0][1];")
		g.line(n, "det = sqrt(nrm[0]*nrm[0] + nrm[1]*nrm[1] + nrm[2]*nrm[2]);")
	}
	g.line(n, "if (det > REAL_ZERO) { for (int d = 0; d < DIM; ++d) nrm[d] /= det; }")
}

func (g *generator) gradients(n int) {
	g.line(n, "for (int a = 0; a < NP; ++a) {")
	g.line(n+1, "for (int d = 0; d < DIM; ++d) {")
	g.line(n+2, "real_t gd = REAL_ZERO;")
	for rd := 0; rd < g.k.RefDim; rd++ {
		g.line(n+2, "gd += DN%d[a][q] * Inv[%d][d];", rd, rd)
	}
	g.line(n+2, "grad[a][d] = gd;")
	g.line(n+1, "}")
	g.line(n, "}")
}

// shape is the C expression for basis function a, or its physical derivative
func shape(a string, deriv int) string {
	if deriv < 0 {
		return fmt.Sprintf("N[%s][q]", a)
	}
	return fmt.Sprintf("grad[%s][%d]", a, deriv)
}

func (g *generator) interpolate(n int) {
	for i, s := range g.k.Slots {
		switch s.Source {
		case kernel.Values:
			g.line(n, "{ real_t sum = REAL_ZERO; for (int a = 0; a < NP; ++a) sum += %s * u[a*NCOMP + %d]; s[%d] = sum; }",
				shape("a", s.Deriv), s.Comp, i)
		case kernel.Rates:
			g.line(n, "{ real_t sum = REAL_ZERO; for (int a = 0; a < NP; ++a) sum += %s * v[a*NCOMP + %d]; s[%d] = sum; }",
				shape("a", s.Deriv), s.Comp, i)
		case kernel.Externals:
			g.line(n, "{ real_t sum = REAL_ZERO; for (int a = 0; a < NP; ++a) sum += N[a][q] * e[a*NEXT + %d]; s[%d] = sum; }",
				s.Comp, i)
		case kernel.Normals:
			g.line(n, "s[%d] = nrm[%d];", i, s.Comp)
		}
	}
}

// program renders a folded polynomial with the same multiplication order
// as kernel.Program.Eval.
func program(p kernel.Program) string {
	terms := make([]string, len(p))
	for i, t := range p {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%.17e", t.Coef))
		for k, s := range t.Slots {
			for e := 0; e < t.Exps[k]; e++ {
				sb.WriteString(fmt.Sprintf("*s[%d]", s))
			}
		}
		terms[i] = sb.String()
	}
	return "(" + strings.Join(terms, " + ") + ")"
}

func (g *generator) residual(n int) {
	for _, op := range g.k.Residual {
		g.line(n, "{ const real_t val = %s * wdet;", program(op.Coef))
		g.line(n+1, "for (int a = 0; a < NP; ++a) r[a*NCOMP + %d] += val * %s; }", op.Comp, shape("a", op.Deriv))
	}
}

func (g *generator) tangent(n int) {
	for _, op := range g.k.Tangent {
		g.line(n, "{ real_t val = %s * wdet;", program(op.Coef))
		if op.TimeWeighted {
			g.line(n+1, "val *= beta;")
		}
		g.line(n+1, "for (int a = 0; a < NP; ++a) {")
		g.line(n+2, "const int row = (a*NCOMP + %d) * NDOF;", op.TestComp)
		g.line(n+2, "const real_t ta = val * %s;", shape("a", op.TestDeriv))
		g.line(n+2, "for (int b = 0; b < NP; ++b) kt[row + b*NCOMP + %d] += ta * %s;", op.TrialComp, shape("b", op.TrialDeriv))
		g.line(n+1, "} }")
	}
}
