package mesh

import "github.com/go-gl/mathgl/mgl64"

// NewPlate returns a flat rectangular plate in the XZ plane (normal +Y),
// centred on the origin, split into nx*nz quads of two triangles each.
func NewPlate(nx int, nz int, width float64, depth float64) *Mesh {
	if nx < 1 {
		nx = 1
	}
	if nz < 1 {
		nz = 1
	}
	m := &Mesh{
		Vertices:  make([]mgl64.Vec3, 0, (nx+1)*(nz+1)),
		Triangles: make([]int, 0, nx*nz*6),
	}
	for j := 0; j <= nz; j++ {
		z := -0.5*depth + depth*float64(j)/float64(nz)
		for i := 0; i <= nx; i++ {
			x := -0.5*width + width*float64(i)/float64(nx)
			m.Vertices = append(m.Vertices, mgl64.Vec3{x, 0, z})
		}
	}
	stride := nx + 1
	for j := 0; j < nz; j++ {
		for i := 0; i < nx; i++ {
			a := j*stride + i
			b := a + 1
			c := a + stride
			d := c + 1
			m.Triangles = append(m.Triangles, a, c, b, b, c, d)
		}
	}
	return m
}

// NewBox returns a closed axis-aligned box centred on the origin. Each face is
// an independent n*n grid, so edge vertices are duplicated and must be welded
// before the box is used as one surface.
func NewBox(size mgl64.Vec3, n int) *Mesh {
	if n < 1 {
		n = 1
	}
	half := size.Mul(0.5)
	faces := []struct {
		origin mgl64.Vec3
		u, v   mgl64.Vec3
	}{
		{mgl64.Vec3{-half[0], -half[1], half[2]}, mgl64.Vec3{size[0], 0, 0}, mgl64.Vec3{0, size[1], 0}},
		{mgl64.Vec3{half[0], -half[1], -half[2]}, mgl64.Vec3{-size[0], 0, 0}, mgl64.Vec3{0, size[1], 0}},
		{mgl64.Vec3{half[0], -half[1], half[2]}, mgl64.Vec3{0, 0, -size[2]}, mgl64.Vec3{0, size[1], 0}},
		{mgl64.Vec3{-half[0], -half[1], -half[2]}, mgl64.Vec3{0, 0, size[2]}, mgl64.Vec3{0, size[1], 0}},
		{mgl64.Vec3{-half[0], half[1], half[2]}, mgl64.Vec3{size[0], 0, 0}, mgl64.Vec3{0, 0, -size[2]}},
		{mgl64.Vec3{-half[0], -half[1], -half[2]}, mgl64.Vec3{size[0], 0, 0}, mgl64.Vec3{0, 0, size[2]}},
	}
	m := &Mesh{}
	for _, f := range faces {
		base := len(m.Vertices)
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				p := f.origin.Add(f.u.Mul(float64(i) / float64(n))).Add(f.v.Mul(float64(j) / float64(n)))
				m.Vertices = append(m.Vertices, p)
			}
		}
		stride := n + 1
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				a := base + j*stride + i
				b := a + 1
				c := a + stride
				d := c + 1
				m.Triangles = append(m.Triangles, a, b, c, b, d, c)
			}
		}
	}
	return m
}
