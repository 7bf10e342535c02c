package element

// Tri3 is the linear triangle on (0,0), (1,0), (0,1).
type Tri3 struct{}

var tri3Faces = [][]int{{0, 1}, {1, 2}, {2, 0}}

func (Tri3) Properties() ElementProperties {
	return ElementProperties{Name: "Linear Triangle", ShortName: "T3", Type: Tri, Order: 1,
		Np: 3, NVp: 3, NFp: 2, NFaces: 3, Dimensions: D2}
}

func (Tri3) Nodes() [][]float64 { return [][]float64{{0, 0}, {1, 0}, {0, 1}} }

func (Tri3) Eval(r []float64, N []float64, dN [][]float64) {
	N[0] = 1 - r[0] - r[1]
	N[1] = r[0]
	N[2] = r[1]
	if dN == nil {
		return
	}
	dN[0][0], dN[0][1] = -1, -1
	dN[1][0], dN[1][1] = 1, 0
	dN[2][0], dN[2][1] = 0, 1
}

func (Tri3) Faces() [][]int     { return tri3Faces }
func (Tri3) FaceScheme() Scheme { return line2 }

// Tet4 is the linear tetrahedron on the unit corner simplex.
type Tet4 struct{}

var (
	tet4Faces = [][]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}}
	line2     = NewLagrange(Line, 1)
)

func (Tet4) Properties() ElementProperties {
	return ElementProperties{Name: "Linear Tetrahedron", ShortName: "Tet4", Type: Tet, Order: 1,
		Np: 4, NVp: 4, NFp: 3, NFaces: 4, Dimensions: D3}
}

func (Tet4) Nodes() [][]float64 {
	return [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func (Tet4) Eval(r []float64, N []float64, dN [][]float64) {
	N[0] = 1 - r[0] - r[1] - r[2]
	N[1], N[2], N[3] = r[0], r[1], r[2]
	if dN == nil {
		return
	}
	for a := range dN[:4] {
		for d := 0; d < 3; d++ {
			dN[a][d] = 0
		}
	}
	dN[0][0], dN[0][1], dN[0][2] = -1, -1, -1
	dN[1][0], dN[2][1], dN[3][2] = 1, 1, 1
}

func (Tet4) Faces() [][]int     { return tet4Faces }
func (Tet4) FaceScheme() Scheme { return Tri3{} }
