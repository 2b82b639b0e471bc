package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/mpmsim/internal/config"
)

const (
	metadataFile = "metadata.json"
	sceneFile    = "scene.yaml"
	statsFile    = "stats.csv"
	framesDir    = "frames"
)

var ErrRunNotFound = errors.New("run not found")

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
	ID         string             `json:"id"`
	Scene      string             `json:"scene"`
	Model      string             `json:"model"`
	Transfer   string             `json:"transfer"`
	Plasticity string             `json:"plasticity,omitempty"`
	Particles  int                `json:"particles"`
	Frames     int                `json:"frames"`
	FrameRate  float64            `json:"frame_rate"`
	Spacing    float64            `json:"h"`
	Timestamp  time.Time          `json:"timestamp"`
	Elapsed    float64            `json:"elapsed_seconds"`
	Complete   bool               `json:"complete"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// FrameRecord is one row of stats.csv.
type FrameRecord struct {
	Frame       int     `csv:"frame"`
	Time        float64 `csv:"time"`
	Steps       int     `csv:"steps"`
	MinDt       float64 `csv:"min_dt"`
	MaxVelocity float64 `csv:"max_velocity"`
	Kinetic     float64 `csv:"kinetic"`
	Elastic     float64 `csv:"elastic"`
	Potential   float64 `csv:"potential"`
	ActiveNodes int     `csv:"active_nodes"`
	NegativeJ   int     `csv:"negative_j"`
	MinJ        float64 `csv:"min_j"`
	MaxJ        float64 `csv:"max_j"`
	ElapsedMs   float64 `csv:"elapsed_ms"`
}

// ParticleRecord is one row of a frame dump.
type ParticleRecord struct {
	ID int     `csv:"id"`
	X  float64 `csv:"x"`
	Y  float64 `csv:"y"`
	Z  float64 `csv:"z"`
}

// Run is an open run directory receiving frames.
type Run struct {
	dir           string
	meta          RunMetadata
	stats         *os.File
	headerWritten bool
}

// Create opens a new run directory for cfg and writes its scene file.
func (s *Store) Create(cfg *config.Config, particles int) (*Run, error) {
	id := fmt.Sprintf("%s_%s", cfg.Name, uuid.NewString()[:8])
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(filepath.Join(dir, framesDir), 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	if err := config.Save(filepath.Join(dir, sceneFile), cfg); err != nil {
		return nil, fmt.Errorf("writing scene: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, statsFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", statsFile, err)
	}

	r := &Run{
		dir:   dir,
		stats: f,
		meta: RunMetadata{
			ID:         id,
			Scene:      cfg.Name,
			Model:      cfg.Model,
			Transfer:   cfg.Transfer,
			Plasticity: cfg.Plasticity.Type,
			Particles:  particles,
			FrameRate:  cfg.FrameRate,
			Spacing:    cfg.H,
			Timestamp:  time.Now(),
		},
	}
	if err := r.writeMetadata(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Run) ID() string { return r.meta.ID }

func (r *Run) Dir() string { return r.dir }

// WriteFrame appends rec to stats.csv. Positions, when non-nil, are dumped to
// frames/frame_NNNNN.csv.
func (r *Run) WriteFrame(rec FrameRecord, positions []r3.Vec) error {
	records := []FrameRecord{rec}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.stats); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		r.headerWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, r.stats); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
	}
	r.meta.Frames = rec.Frame + 1

	if positions == nil {
		return nil
	}
	return writeParticles(framePath(r.dir, rec.Frame), positions)
}

// Close records final metrics and marks the run complete.
func (r *Run) Close(metrics map[string]float64, elapsed time.Duration) error {
	r.meta.Metrics = metrics
	r.meta.Elapsed = elapsed.Seconds()
	r.meta.Complete = true
	err := r.writeMetadata()
	if cerr := r.stats.Close(); err == nil {
		err = cerr
	}
	return err
}

func (r *Run) writeMetadata() error {
	data, err := json.MarshalIndent(r.meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, metadataFile), data, 0644)
}

// List returns every run, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
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
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata for %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadConfig returns the scene a run was started with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, sceneFile))
}

func (s *Store) LoadStats(runID string) ([]FrameRecord, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, statsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	var records []FrameRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return []FrameRecord{}, nil
		}
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return records, nil
}

// LoadFrame returns the particle positions dumped for frame.
func (s *Store) LoadFrame(runID string, frame int) ([]r3.Vec, error) {
	f, err := os.Open(framePath(filepath.Join(s.baseDir, runID), frame))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []ParticleRecord
	if err := gocsv.UnmarshalFile(f, &records); err != nil {
		return nil, fmt.Errorf("reading frame %d: %w", frame, err)
	}
	pts := make([]r3.Vec, len(records))
	for _, rec := range records {
		if rec.ID < 0 || rec.ID >= len(pts) {
			return nil, fmt.Errorf("frame %d: particle id %d out of range", frame, rec.ID)
		}
		pts[rec.ID] = r3.Vec{X: rec.X, Y: rec.Y, Z: rec.Z}
	}
	return pts, nil
}

func framePath(dir string, frame int) string {
	return filepath.Join(dir, framesDir, fmt.Sprintf("frame_%05d.csv", frame))
}

func writeParticles(path string, positions []r3.Vec) error {
	records := make([]ParticleRecord, len(positions))
	for i, p := range positions {
		records[i] = ParticleRecord{ID: i, X: p.X, Y: p.Y, Z: p.Z}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&records, f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// ExportFrame writes positions as a standalone particle CSV.
func ExportFrame(path string, positions []r3.Vec) error {
	return writeParticles(path, positions)
}
