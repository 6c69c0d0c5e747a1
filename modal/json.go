package modal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

type jsonMatrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

type jsonModel struct {
	Gain        jsonMatrix   `json:"gain"`
	GainPinv    jsonMatrix   `json:"gainPinv"`
	Mass        []float64    `json:"mass"`
	OmegaPlus   [][2]float64 `json:"omegaPlus"`
	OmegaMinus  [][2]float64 `json:"omegaMinus"`
	Frequencies []float64    `json:"frequencies"`
}

func toJSONMatrix(m *mat.Dense) jsonMatrix {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return jsonMatrix{Rows: r, Cols: c, Data: data}
}

func (j jsonMatrix) dense(name string) (*mat.Dense, error) {
	if j.Rows <= 0 || j.Cols <= 0 || len(j.Data) != j.Rows*j.Cols {
		return nil, fmt.Errorf("%s: %dx%d matrix with %d values", name, j.Rows, j.Cols, len(j.Data))
	}
	return mat.NewDense(j.Rows, j.Cols, j.Data), nil
}

func toPairs(zs []complex128) [][2]float64 {
	out := make([][2]float64, len(zs))
	for i, z := range zs {
		out[i] = [2]float64{real(z), imag(z)}
	}
	return out
}

func fromPairs(ps [][2]float64) []complex128 {
	out := make([]complex128, len(ps))
	for i, p := range ps {
		out[i] = complex(p[0], p[1])
	}
	return out
}

// Save writes m as JSON.
func (m *Model) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonModel{
		Gain:        toJSONMatrix(m.Gain),
		GainPinv:    toJSONMatrix(m.GainPinv),
		Mass:        m.Mass,
		OmegaPlus:   toPairs(m.OmegaPlus),
		OmegaMinus:  toPairs(m.OmegaMinus),
		Frequencies: m.Frequencies,
	})
}

// Load reads a model written by Save and checks that its parts agree.
func Load(r io.Reader) (*Model, error) {
	var j jsonModel
	if err := json.NewDecoder(r).Decode(&j); err != nil {
		return nil, fmt.Errorf("decode modal model: %w", err)
	}
	gain, err := j.Gain.dense("gain")
	if err != nil {
		return nil, err
	}
	pinv, err := j.GainPinv.dense("gainPinv")
	if err != nil {
		return nil, err
	}
	modes := j.Gain.Cols
	if j.GainPinv.Rows != modes || j.GainPinv.Cols != j.Gain.Rows {
		return nil, fmt.Errorf("gainPinv is %dx%d, want %dx%d", j.GainPinv.Rows, j.GainPinv.Cols, modes, j.Gain.Rows)
	}
	if len(j.Mass) != modes || len(j.OmegaPlus) != modes || len(j.OmegaMinus) != modes || len(j.Frequencies) != modes {
		return nil, fmt.Errorf("per-mode arrays do not match %d modes", modes)
	}
	return &Model{
		Gain:        gain,
		GainPinv:    pinv,
		Mass:        j.Mass,
		OmegaPlus:   fromPairs(j.OmegaPlus),
		OmegaMinus:  fromPairs(j.OmegaMinus),
		Frequencies: j.Frequencies,
	}, nil
}

// SaveFile writes m to path.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
