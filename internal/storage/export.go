package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/sim"
)

type ExportData struct {
	Scenario   string             `json:"scenario"`
	Correction string             `json:"correction"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Steps      int                `json:"steps"`
	Snapped    int                `json:"snapped"`
	Times      []float64          `json:"times"`
	Residuals  []float64          `json:"residuals"`
	Energies   []float64          `json:"energies"`
	Bodies     map[string][]Pose  `json:"bodies"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Pose is one body's position and orientation (w, x, y, z) at a sample.
type Pose struct {
	Position    [3]float64 `json:"p"`
	Orientation [4]float64 `json:"q"`
}

func NewExportData(cfg *config.Config, result *sim.Result) *ExportData {
	n := len(result.Samples)
	data := &ExportData{
		Scenario:   cfg.Scenario,
		Correction: cfg.Solver.Correction,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Steps:      result.StepsTaken,
		Snapped:    result.Snapped,
		Times:      make([]float64, n),
		Residuals:  make([]float64, n),
		Energies:   make([]float64, n),
		Bodies:     make(map[string][]Pose),
		Metrics:    result.Metrics,
	}

	for i, s := range result.Samples {
		data.Times[i] = s.Time
		data.Residuals[i] = s.Residual
		data.Energies[i] = s.Energy
		for _, b := range s.Bodies {
			q := b.Orientation
			data.Bodies[b.Name] = append(data.Bodies[b.Name], Pose{
				Position:    b.Position,
				Orientation: [4]float64{q.W, q.V[0], q.V[1], q.V[2]},
			})
		}
	}
	return data
}

func ExportJSON(w io.Writer, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(cfg, result))
}

// ExportCSV writes the same columns a stored run keeps in samples.csv.
func ExportCSV(w io.Writer, result *sim.Result) error {
	var bodies []string
	if len(result.Samples) > 0 {
		for _, b := range result.Samples[0].Bodies {
			bodies = append(bodies, b.Name)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(bodies)); err != nil {
		return err
	}
	for i := range result.Samples {
		if err := cw.Write(Row(&result.Samples[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
