package springmass

import (
	"fmt"
	"math"
)

// Material describes a thin shell. Fluid and Viscous are the Rayleigh-style
// damping coefficients applied per mode (delta = Fluid*lambda + Viscous).
type Material struct {
	Young     float64 `json:"young"`
	Poisson   float64 `json:"poisson"`
	Thickness float64 `json:"thickness"`
	Density   float64 `json:"density"`
	Fluid     float64 `json:"fluid"`
	Viscous   float64 `json:"viscous"`
}

// DefaultMaterial returns a unit material.
func DefaultMaterial() Material {
	return Material{
		Young:     1,
		Poisson:   0,
		Thickness: 1,
		Density:   1,
		Fluid:     1,
		Viscous:   1,
	}
}

// Stiffness returns the per-edge spring constant. Poisson's ratio does not
// enter the spring-mass approximation.
func (m Material) Stiffness() float64 {
	return m.Young * m.Thickness
}

// Validate checks that the material can produce a positive-definite mass
// matrix and a non-trivial stiffness matrix.
func (m Material) Validate() error {
	check := func(name string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("material %s must be > 0, got %g", name, v)
		}
		return nil
	}
	if err := check("young", m.Young); err != nil {
		return err
	}
	if err := check("thickness", m.Thickness); err != nil {
		return err
	}
	if err := check("density", m.Density); err != nil {
		return err
	}
	if m.Poisson < 0 || m.Poisson >= 0.5 {
		return fmt.Errorf("material poisson must be in [0,0.5), got %g", m.Poisson)
	}
	if m.Fluid < 0 || m.Viscous < 0 {
		return fmt.Errorf("material damping must be >= 0, got fluid=%g viscous=%g", m.Fluid, m.Viscous)
	}
	return nil
}
