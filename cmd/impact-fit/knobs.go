package main

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-modal/internal/cli"
	"github.com/cwbudde/algo-modal/springmass"
)

// knobDef is one fitted material field. Log knobs are searched over
// log10(value).
type knobDef struct {
	Name string
	Min  float64
	Max  float64
	Log  bool
}

type candidate struct {
	Vals []float64
}

var materialKnobs = []knobDef{
	{Name: "young", Min: 1e5, Max: 1e11, Log: true},
	{Name: "density", Min: 100, Max: 20000, Log: true},
	{Name: "fluid", Min: 1e-9, Max: 1e-4, Log: true},
	{Name: "viscous", Min: 1e-2, Max: 1e2, Log: true},
}

func (d knobDef) normalize(v float64) float64 {
	lo, hi := d.Min, d.Max
	if d.Log {
		v, lo, hi = math.Log10(math.Max(v, d.Min)), math.Log10(lo), math.Log10(hi)
	}
	return cli.Clamp((v-lo)/(hi-lo), 0, 1)
}

func (d knobDef) denormalize(x float64) float64 {
	x = cli.Clamp(x, 0, 1)
	if d.Log {
		lo, hi := math.Log10(d.Min), math.Log10(d.Max)
		return math.Pow(10, lo+x*(hi-lo))
	}
	return d.Min + x*(d.Max-d.Min)
}

func initCandidate(base springmass.Material) candidate {
	vals := make([]float64, len(materialKnobs))
	for i, d := range materialKnobs {
		v, err := field(base, d.Name)
		if err != nil {
			panic(err)
		}
		vals[i] = cli.Clamp(v, d.Min, d.Max)
	}
	return candidate{Vals: vals}
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i, d := range defs {
		x := 0.0
		if i < len(pos) {
			x = pos[i]
		}
		vals[i] = d.denormalize(x)
	}
	return candidate{Vals: vals}
}

func toNormalized(c candidate, defs []knobDef) []float64 {
	pos := make([]float64, len(defs))
	for i, d := range defs {
		pos[i] = d.normalize(c.Vals[i])
	}
	return pos
}

// apply returns base with the candidate's fields replaced.
func apply(base springmass.Material, c candidate, defs []knobDef) (springmass.Material, error) {
	m := base
	for i, d := range defs {
		v := c.Vals[i]
		switch d.Name {
		case "young":
			m.Young = v
		case "density":
			m.Density = v
		case "fluid":
			m.Fluid = v
		case "viscous":
			m.Viscous = v
		default:
			return m, fmt.Errorf("unknown knob %q", d.Name)
		}
	}
	return m, m.Validate()
}

func field(m springmass.Material, name string) (float64, error) {
	switch name {
	case "young":
		return m.Young, nil
	case "density":
		return m.Density, nil
	case "fluid":
		return m.Fluid, nil
	case "viscous":
		return m.Viscous, nil
	}
	return 0, fmt.Errorf("unknown knob %q", name)
}

func knobMap(c candidate, defs []knobDef) map[string]float64 {
	out := make(map[string]float64, len(defs))
	for i, d := range defs {
		out[d.Name] = c.Vals[i]
	}
	return out
}

func cloneCandidate(c candidate) candidate {
	return candidate{Vals: append([]float64(nil), c.Vals...)}
}
