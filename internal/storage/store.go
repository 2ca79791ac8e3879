// Package storage persists IK and preview runs as a directory per run
// holding metadata.json and series.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/qpctl/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	seriesFile   = "series.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes one stored run. Kind is "ik" or "preview";
// Controller names the preview controller kind or the IK backend.
type RunMetadata struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	Preset     string             `json:"preset,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Backend    string             `json:"backend"`
	Controller string             `json:"controller,omitempty"`
	Tasks      []string           `json:"tasks,omitempty"`
	Steps      int                `json:"steps"`
	Failures   int                `json:"failures"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes a run and returns its ID. Fields ID, Timestamp, Steps and
// Failures of meta are filled in from the result.
func (s *Store) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	meta.ID = fmt.Sprintf("%s_%s", meta.Kind, uuid.NewString()[:8])
	meta.Timestamp = time.Now()
	meta.Steps = len(result.Times)
	meta.Failures = len(result.Errors)
	if meta.Metrics == nil {
		meta.Metrics = result.Metrics
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
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

	csvFile, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// WriteCSV writes one row per sample: time, x0..xn, u0..um. Missing
// controls are written as zeros.
func WriteCSV(out io.Writer, result *dynamo.Result) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	if len(result.States) == 0 {
		return nil
	}

	header := []string{"time"}
	for i := range result.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}

	numControls := 0
	for _, u := range result.Controls {
		if len(u) > numControls {
			numControls = len(u)
		}
	}
	for i := 0; i < numControls; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}

	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{strconv.FormatFloat(result.Times[i], 'f', 6, 64)}
		for _, val := range result.States[i] {
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		for j := 0; j < numControls; j++ {
			val := 0.0
			if i < len(result.Controls) && j < len(result.Controls[i]) {
				val = result.Controls[i][j]
			}
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// List returns stored runs, newest first.
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
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries returns the column names (without time), the sample times and
// one row of values per sample.
func (s *Store) LoadSeries(runID string) ([]string, []float64, [][]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, seriesFile))
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return []string{}, []float64{}, [][]float64{}, nil
	}

	columns := append([]string(nil), records[0][1:]...)
	times := make([]float64, 0, len(records)-1)
	rows := make([][]float64, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)

		row := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				val = 0
			}
			row = append(row, val)
		}
		rows = append(rows, row)
	}
	return columns, times, rows, nil
}
