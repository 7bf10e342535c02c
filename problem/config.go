package problem

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/notargets/FEMKernel/solver"
)

// NewtonData holds the nonlinear iteration settings
type NewtonData struct {
	MaxIt int     `json:"maxit"` // max number of iterations per step
	FbTol float64 `json:"fbtol"` // tolerance on max|R| relative to the first residual
	FbMin float64 `json:"fbmin"` // absolute floor on max|R|
}

// StepData holds the time step policy
type StepData struct {
	Dt         float64 `json:"dt"`         // nominal (and maximum) step
	DtMin      float64 `json:"dtmin"`      // smallest step before giving up
	Shrink     float64 `json:"shrink"`     // factor applied to Δt after a failed attempt
	Grow       float64 `json:"grow"`       // factor applied to Δt after a success, capped at Dt
	MaxRetries int     `json:"maxretries"` // failed attempts allowed per step
	MaxSteps   int     `json:"maxsteps"`   // committed steps allowed per run
}

// StopData holds the stopping criteria. Rates maps field names to a
// threshold on the largest absolute rate of that field; the run stops once
// every threshold holds. A positive Time also stops the run at that time.
type StopData struct {
	Rates map[string]float64 `json:"rates"`
	Time  float64            `json:"time"`
}

// Config collects the driver settings
type Config struct {
	Theta      float64       `json:"theta"`      // θ-method coefficient in (0, 1]
	ThGalerkin bool          `json:"thgalerkin"` // use θ = 2/3
	ThLiniger  bool          `json:"thliniger"`  // use θ = 0.878
	Newton     NewtonData    `json:"newton"`
	Linear     solver.Config `json:"linear"`
	Step       StepData      `json:"step"`
	Stop       StopData      `json:"stop"`
	Verbose    bool          `json:"verbose"`
}

// SetDefault sets default values
func (o *Config) SetDefault() {

	// backward Euler
	o.Theta = 1

	// nonlinear solver
	o.Newton.MaxIt = 20
	o.Newton.FbTol = 1e-8
	o.Newton.FbMin = 1e-14

	// linear solver
	o.Linear.SetDefault()

	// time stepping
	o.Step.Dt = 1
	o.Step.DtMin = 1e-8
	o.Step.Shrink = 0.5
	o.Step.Grow = 2
	o.Step.MaxRetries = 10
	o.Step.MaxSteps = 1000
}

// PostProcess resolves the θ shortcuts and checks the settings
func (o *Config) PostProcess() error {
	if o.ThGalerkin {
		o.Theta = 2.0 / 3.0
	}
	if o.ThLiniger {
		o.Theta = 0.878
	}
	switch {
	case o.Theta <= 0 || o.Theta > 1:
		return fmt.Errorf("theta = %g is not in (0, 1]", o.Theta)
	case o.Newton.MaxIt < 1:
		return fmt.Errorf("newton.maxit = %d must be positive", o.Newton.MaxIt)
	case o.Step.Dt <= 0:
		return fmt.Errorf("step.dt = %g must be positive", o.Step.Dt)
	case o.Step.DtMin <= 0 || o.Step.DtMin > o.Step.Dt:
		return fmt.Errorf("step.dtmin = %g is not in (0, dt]", o.Step.DtMin)
	case o.Step.Shrink <= 0 || o.Step.Shrink >= 1:
		return fmt.Errorf("step.shrink = %g is not in (0, 1)", o.Step.Shrink)
	case o.Step.Grow < 1:
		return fmt.Errorf("step.grow = %g must be at least 1", o.Step.Grow)
	case o.Linear.Restart < 1 || o.Linear.MaxPasses < 1:
		return fmt.Errorf("linear solver needs positive restart and maxpasses")
	case o.Stop.Time < 0:
		return fmt.Errorf("stop.time = %g is negative", o.Stop.Time)
	}
	for name, th := range o.Stop.Rates {
		if th < 0 {
			return fmt.Errorf("stop threshold of %s is negative", name)
		}
	}
	return nil
}

// ReadConfig reads a JSON file over the default settings
func ReadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %q: %w", path, err)
	}
	var o Config
	o.SetDefault()
	if err = json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config %q: %w", path, err)
	}
	if err = o.PostProcess(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &o, nil
}
