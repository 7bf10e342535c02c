package problem

// State holds the global field vectors. X and Xdot are the iterates of the
// current step; Xold and XdotOld the last committed values.
type State struct {
	T       float64
	X       []float64
	Xdot    []float64
	Told    float64
	Xold    []float64
	XdotOld []float64
	Psi     []float64 // ψ* = β1 x_old + β2 xdot_old
}

func NewState(ndof int) *State {
	return &State{
		X:       make([]float64, ndof),
		Xdot:    make([]float64, ndof),
		Xold:    make([]float64, ndof),
		XdotOld: make([]float64, ndof),
		Psi:     make([]float64, ndof),
	}
}

// Commit accepts the current iterate.
func (s *State) Commit() {
	s.Told = s.T
	copy(s.Xold, s.X)
	copy(s.XdotOld, s.Xdot)
}

// Restore goes back to the last committed values.
func (s *State) Restore() {
	s.T = s.Told
	copy(s.X, s.Xold)
	copy(s.Xdot, s.XdotOld)
}

// Predict starts a step: sets ψ* and the rates of the unchanged iterate.
func (s *State) Predict(beta1, beta2 float64) {
	for i := range s.Psi {
		s.Psi[i] = beta1*s.Xold[i] + beta2*s.XdotOld[i]
	}
	s.Rates(beta1)
}

// Rates updates ẋ = β1 x − ψ*.
func (s *State) Rates(beta1 float64) {
	for i := range s.Xdot {
		s.Xdot[i] = beta1*s.X[i] - s.Psi[i]
	}
}
