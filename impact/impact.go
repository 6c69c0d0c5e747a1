// Package impact excites a modal model with collision forces and keeps the
// resulting per-mode amplitudes.
package impact

import (
	"fmt"
	"math/cmplx"

	"github.com/cwbudde/algo-modal/locator"
	"github.com/cwbudde/algo-modal/modal"
	"github.com/cwbudde/algo-modal/springmass"
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// Collision is one contact event reported by the physics layer.
type Collision struct {
	// Contacts are world-space points on the struck surface.
	Contacts []mgl64.Vec3
	// Speed is the relative speed of the two bodies at impact.
	Speed float64
	// T0 is the impact's offset into the next rendered block, in seconds.
	T0 float64
}

// Force returns the force magnitude applied at each contact.
func (c Collision) Force() float64 {
	return c.Speed * c.Speed
}

// Object is a struck surface: its modal model, a locator over the same mesh
// and the amplitudes accumulated by every impact so far. Amplitudes only ever
// grow by superposition; they are never reset.
//
// An Object is driven from a single physics goroutine.
type Object struct {
	model *modal.Model
	loc   *locator.Locator

	amps  []complex128
	force *mat.VecDense
	gain  *mat.VecDense
}

// NewObject binds a model to the locator built over its mesh.
func NewObject(m *modal.Model, loc *locator.Locator) *Object {
	return &Object{
		model: m,
		loc:   loc,
		amps:  make([]complex128, m.Modes()),
		force: mat.NewVecDense(m.Dof(), nil),
		gain:  mat.NewVecDense(m.Modes(), nil),
	}
}

// NewSilent returns an object that ignores collisions. It stands in for a
// surface whose model could not be built.
func NewSilent() *Object {
	return &Object{}
}

// Silent reports whether collisions are ignored.
func (o *Object) Silent() bool { return o.model == nil }

// Model returns the modal model, or nil for a silent object.
func (o *Object) Model() *modal.Model { return o.model }

// Amplitudes returns a copy of the current per-mode amplitudes.
func (o *Object) Amplitudes() []complex128 {
	return append([]complex128(nil), o.amps...)
}

// Collide spreads the collision force over the vertices of each contacted
// triangle and adds the modal response to the amplitudes.
func (o *Object) Collide(c Collision) {
	if o.Silent() || len(c.Contacts) == 0 {
		return
	}
	o.force.Zero()
	f := c.Force()
	for _, p := range c.Contacts {
		for _, v := range o.loc.Locate(p) {
			for d := 0; d < springmass.Dof; d++ {
				i := v*springmass.Dof + d
				o.force.SetVec(i, o.force.AtVec(i)+f)
			}
		}
	}
	o.project(c.T0)
}

// ApplyForce adds the response to an explicit 3V force vector.
func (o *Object) ApplyForce(f []float64, t0 float64) error {
	if o.Silent() {
		return nil
	}
	if len(f) != o.force.Len() {
		return fmt.Errorf("impact: force has %d entries, model has %d dof", len(f), o.force.Len())
	}
	o.force.CopyVec(mat.NewVecDense(len(f), f))
	o.project(t0)
	return nil
}

// project computes g = GainPinv·f and
// amps[i] += g[i] / (m[i]·(w+[i]-w-[i])·exp(w+[i]·t0)).
func (o *Object) project(t0 float64) {
	o.gain.MulVec(o.model.GainPinv, o.force)
	t := complex(t0, 0)
	for i := range o.amps {
		wp, wm := o.model.OmegaPlus[i], o.model.OmegaMinus[i]
		den := complex(o.model.Mass[i], 0) * (wp - wm) * cmplx.Exp(wp*t)
		o.amps[i] += complex(o.gain.AtVec(i), 0) / den
	}
}
