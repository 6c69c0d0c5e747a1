package main

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-modal/springmass"
)

func TestNormalizeRoundTrip(t *testing.T) {
	base := springmass.Material{Young: 2e9, Thickness: 1e-3, Density: 7800, Fluid: 1e-7, Viscous: 3}
	c := initCandidate(base)
	back := fromNormalized(toNormalized(c, materialKnobs), materialKnobs)
	for i, v := range c.Vals {
		if math.Abs(back.Vals[i]-v) > 1e-9*v {
			t.Fatalf("%s: %g -> %g", materialKnobs[i].Name, v, back.Vals[i])
		}
	}
}

func TestLogKnobMidpoint(t *testing.T) {
	d := knobDef{Name: "young", Min: 1e4, Max: 1e8, Log: true}
	if got := d.denormalize(0.5); math.Abs(got-1e6) > 1e-6 {
		t.Fatalf("midpoint = %g, want 1e6", got)
	}
	if got := d.normalize(1e12); got != 1 {
		t.Fatalf("above range normalizes to %g, want 1", got)
	}
	if got := d.normalize(0); got != 0 {
		t.Fatalf("non-positive value normalizes to %g, want 0", got)
	}
}

func TestApplyKeepsUnfittedFields(t *testing.T) {
	base := springmass.Material{Young: 1e9, Poisson: 0.3, Thickness: 2e-3, Density: 1000, Fluid: 1e-7, Viscous: 1}
	c := fromNormalized([]float64{1, 0, 0.5, 1}, materialKnobs)
	m, err := apply(base, c, materialKnobs)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if m.Poisson != 0.3 || m.Thickness != 2e-3 {
		t.Fatalf("unfitted fields changed: %+v", m)
	}
	for _, c := range []struct{ got, want float64 }{{m.Young, 1e11}, {m.Density, 100}, {m.Viscous, 1e2}} {
		if math.Abs(c.got-c.want) > 1e-9*c.want {
			t.Fatalf("fitted fields wrong: %+v", m)
		}
	}
	if _, err := apply(base, c, []knobDef{{Name: "poisson"}}); err == nil {
		t.Fatalf("expected error for unknown knob")
	}
}
