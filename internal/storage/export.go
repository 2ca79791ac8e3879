package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/qpctl/internal/dynamo"
)

type ExportData struct {
	RunMetadata
	Times    []float64   `json:"times"`
	States   [][]float64 `json:"states"`
	Controls [][]float64 `json:"controls"`
	Errors   []string    `json:"errors,omitempty"`
}

// ExportJSON writes metadata and the full series as one JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, result *dynamo.Result) error {
	data := ExportData{
		RunMetadata: meta,
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Controls:    make([][]float64, len(result.Controls)),
	}
	if data.Metrics == nil {
		data.Metrics = result.Metrics
	}
	data.Steps = len(result.Times)
	data.Failures = len(result.Errors)

	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	for _, err := range result.Errors {
		data.Errors = append(data.Errors, err.Error())
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
