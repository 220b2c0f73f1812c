package training

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	filenameColumn = "filename"
	labelColumn    = "fill_percent"
)

type Example struct {
	Filename    string
	FillPercent float64
}

// Target is the label scaled to the model's [0,1] output range.
func (e Example) Target() float64 {
	return e.FillPercent / 100
}

// LoadManifest reads a CSV manifest whose header names a filename and a
// fill_percent column. Other columns are ignored. Any bad row fails the
// whole manifest.
func LoadManifest(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Reason: "cannot open manifest", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ManifestError{Path: path, Line: 1, Reason: "manifest is empty"}
	}
	if err != nil {
		return nil, &ManifestError{Path: path, Line: 1, Reason: "cannot read header", Err: err}
	}

	fileIdx, labelIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case filenameColumn:
			fileIdx = i
		case labelColumn:
			labelIdx = i
		}
	}
	if fileIdx < 0 || labelIdx < 0 {
		return nil, &ManifestError{Path: path, Line: 1, Reason: "header must contain filename and fill_percent columns"}
	}

	var examples []Example
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, &ManifestError{Path: path, Line: line, Reason: "malformed row", Err: err}
		}
		line, _ := r.FieldPos(0)
		if fileIdx >= len(record) || labelIdx >= len(record) {
			return nil, &ManifestError{Path: path, Line: line, Reason: "row is missing columns"}
		}

		name := strings.TrimSpace(record[fileIdx])
		if name == "" {
			return nil, &ManifestError{Path: path, Line: line, Reason: "empty filename"}
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(record[labelIdx]), 64)
		if err != nil {
			return nil, &ManifestError{Path: path, Line: line, Reason: "invalid fill_percent", Err: err}
		}
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return nil, &ManifestError{Path: path, Line: line, Reason: "fill_percent " + record[labelIdx] + " outside [0,100]"}
		}
		examples = append(examples, Example{Filename: name, FillPercent: pct})
	}

	if len(examples) == 0 {
		return nil, &ManifestError{Path: path, Reason: "manifest has no examples"}
	}
	return examples, nil
}
