package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/jointsim/internal/config"
	"github.com/san-kum/jointsim/internal/sim"
)

var ErrRunNotFound = errors.New("run not found")

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

// sampleColumns precede the per-body columns in samples.csv.
var sampleColumns = []string{"step", "time", "residual", "kinetic_energy", "energy", "joints", "molecules"}

var bodyColumns = []string{"x", "y", "z", "qw", "qx", "qy", "qz", "vx", "vy", "vz", "wx", "wy", "wz"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Scenario    string             `json:"scenario"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float64            `json:"dt"`
	Duration    float64            `json:"duration"`
	Correction  string             `json:"correction"`
	Iterations  int                `json:"velocity_iterations"`
	Steps       int                `json:"steps"`
	Snapped     int                `json:"snapped"`
	Events      map[string]int     `json:"events,omitempty"`
	EnergyDrift float64            `json:"energy_drift"`
	Metrics     map[string]float64 `json:"metrics"`
	Bodies      []string           `json:"bodies"`
	Config      *config.Config     `json:"-"`
}

// Series is the tabular form of a stored run: one row per sample.
type Series struct {
	Header []string
	Times  []float64
	Rows   [][]float64
}

// Column returns the values of the named column, or nil.
func (s *Series) Column(name string) []float64 {
	for i, h := range s.Header {
		if h != name {
			continue
		}
		col := make([]float64, len(s.Rows))
		for r, row := range s.Rows {
			if i < len(row) {
				col[r] = row[i]
			}
		}
		return col
	}
	return nil
}

// Save writes a run directory holding the metadata, the config that produced
// it and every recorded sample.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Scenario:    cfg.Scenario,
		Timestamp:   time.Now(),
		Seed:        cfg.Seed,
		Dt:          cfg.Dt,
		Duration:    cfg.Duration,
		Correction:  cfg.Solver.Correction,
		Iterations:  cfg.Solver.VelocityIterations,
		Steps:       result.StepsTaken,
		Snapped:     result.Snapped,
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
	}
	if len(result.Events) > 0 {
		meta.Events = make(map[string]int)
		for _, ev := range result.Events {
			meta.Events[ev.Kind.String()]++
		}
	}
	if len(result.Samples) > 0 {
		for _, b := range result.Samples[0].Bodies {
			meta.Bodies = append(meta.Bodies, b.Name)
		}
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, "config.yaml"), cfg); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, samplesFile), meta.Bodies, result.Samples); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSamples(path string, bodies []string, samples []sim.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header(bodies)); err != nil {
		return err
	}
	for i := range samples {
		if err := w.Write(Row(&samples[i])); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Header names the csv columns for a run over the given bodies.
func Header(bodies []string) []string {
	header := append([]string(nil), sampleColumns...)
	for _, name := range bodies {
		for _, c := range bodyColumns {
			header = append(header, name+"."+c)
		}
	}
	return header
}

func Row(s *sim.Sample) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	row := []string{
		strconv.Itoa(s.Step),
		f(s.Time),
		f(s.Residual),
		f(s.KineticEnergy),
		f(s.Energy),
		strconv.Itoa(s.Joints),
		strconv.Itoa(s.Molecules),
	}
	for _, b := range s.Bodies {
		q := b.Orientation
		for _, v := range []float64{
			b.Position[0], b.Position[1], b.Position[2],
			q.W, q.V[0], q.V[1], q.V[2],
			b.LinearVelocity[0], b.LinearVelocity[1], b.LinearVelocity[2],
			b.AngularVelocity[0], b.AngularVelocity[1], b.AngularVelocity[2],
		} {
			row = append(row, f(v))
		}
	}
	return row
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	runDir := filepath.Join(s.baseDir, runID)
	data, err := os.ReadFile(filepath.Join(runDir, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	if cfg, err := config.Load(filepath.Join(runDir, "config.yaml")); err == nil {
		meta.Config = cfg
	}
	return &meta, nil
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Series{}, nil
	}

	series := &Series{
		Header: records[0],
		Times:  make([]float64, 0, len(records)-1),
		Rows:   make([][]float64, 0, len(records)-1),
	}
	for _, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: column %d: %w", runID, j, err)
			}
			row[j] = v
		}
		if len(row) > 1 {
			series.Times = append(series.Times, row[1])
		}
		series.Rows = append(series.Rows, row)
	}
	return series, nil
}
