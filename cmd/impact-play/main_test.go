package main

import (
	"testing"

	"github.com/cwbudde/algo-modal/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

func TestParseStrike(t *testing.T) {
	m := mesh.NewPlate(2, 2, 1, 1)
	cases := []struct {
		line    string
		contact mgl64.Vec3
		speed   float64
	}{
		{"0.1,0,0.2", mgl64.Vec3{0.1, 0, 0.2}, 1},
		{"0,0,0 2.5", mgl64.Vec3{}, 2.5},
		{"tri 3", m.Centroid(3), 1},
		{"tri 0 0.5", m.Centroid(0), 0.5},
	}
	for _, tc := range cases {
		c, err := parseStrike(tc.line, m, 1)
		if err != nil {
			t.Fatalf("%q: %v", tc.line, err)
		}
		if len(c.Contacts) != 1 || c.Contacts[0] != tc.contact || c.Speed != tc.speed {
			t.Fatalf("%q: got %+v", tc.line, c)
		}
	}
	for _, line := range []string{"", "   ", "# comment"} {
		c, err := parseStrike(line, m, 1)
		if err != nil || len(c.Contacts) != 0 {
			t.Fatalf("%q: got %+v, %v", line, c, err)
		}
	}
	for _, line := range []string{"tri", "tri 99", "1,2", "0,0,0 fast"} {
		if _, err := parseStrike(line, m, 1); err == nil {
			t.Fatalf("%q: expected error", line)
		}
	}
}
