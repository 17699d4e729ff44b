// Package storage persists headless runs as a directory per run holding
// metadata.json and frames.csv.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/san-kum/forcesim/internal/dynamo"
	"github.com/san-kum/forcesim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunParams describes how a run was produced.
type RunParams struct {
	Scene      string
	Integrator dynamo.IntegratorKind
	Dt         float64
	Duration   float64
	Seed       int64
}

type RunMetadata struct {
	ID          string                `json:"id"`
	Scene       string                `json:"scene"`
	Timestamp   time.Time             `json:"timestamp"`
	Seed        int64                 `json:"seed"`
	Dt          float64               `json:"dt"`
	Duration    float64               `json:"duration"`
	Integrator  dynamo.IntegratorKind `json:"integrator"`
	Bodies      []string              `json:"bodies"`
	StepsTaken  int                   `json:"steps_taken"`
	EnergyDrift float64               `json:"energy_drift"`
	Metrics     map[string]float64    `json:"metrics"`
}

func (s *Store) Save(p RunParams, result *sim.Result) (string, error) {
	now := s.now()
	runID := fmt.Sprintf("%s_%d", p.Scene, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Scene:       p.Scene,
		Timestamp:   now,
		Seed:        p.Seed,
		Dt:          p.Dt,
		Duration:    p.Duration,
		Integrator:  p.Integrator,
		Bodies:      bodyIDs(result.Frames),
		StepsTaken:  result.StepsTaken,
		EnergyDrift: result.EnergyDrift,
		Metrics:     result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, framesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result.Frames); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns every readable run, oldest first.
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

	slices.SortFunc(runs, func(a, b RunMetadata) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: run %s metadata: %v", dynamo.ErrInvalidRun, runID, err)
	}

	return &meta, nil
}

func (s *Store) LoadFrames(runID string) ([]dynamo.Frame, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, fmt.Errorf("load frames %s: %w", runID, err)
	}
	defer file.Close()

	return ReadCSV(file)
}

func bodyIDs(frames []dynamo.Frame) []string {
	if len(frames) == 0 {
		return []string{}
	}
	ids := make([]string, len(frames[0].Bodies))
	for i, b := range frames[0].Bodies {
		ids[i] = b.ID
	}
	return ids
}
