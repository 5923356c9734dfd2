package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"fae/ml"
)

// Schema names the label column and the columns that hold categories rather
// than numbers. Every other column is a numeric feature.
type Schema struct {
	LabelColumn        string   `yaml:"label_column"`
	CategoricalColumns []string `yaml:"categorical_columns"`
}

// FireSchema is the layout of the fire extinction dataset.
func FireSchema() Schema {
	return Schema{LabelColumn: "STATUS", CategoricalColumns: []string{"FUEL"}}
}

// Dataset is a cleaned, labeled feature table.
type Dataset struct {
	Frame  *ml.Frame
	Labels []int
	Issues []QualityIssue
	Stats  CleaningStats
}

func Load(path string, schema Schema, cleaner *Cleaner) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(f, schema, cleaner)
}

// Read parses a CSV with a header line. A nil cleaner uses NewCleaner(schema).
func Read(r io.Reader, schema Schema, cleaner *Cleaner) (*Dataset, error) {
	if schema.LabelColumn == "" {
		return nil, errors.New("schema has no label column")
	}
	if cleaner == nil {
		cleaner = NewCleaner(schema)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
	}
	if err := checkHeader(header, schema); err != nil {
		return nil, err
	}

	var records []*Record
	for line := 2; ; line++ {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		records = append(records, &Record{Line: line, Header: header, Cells: cells})
	}

	cleaned, issues := cleaner.Clean(records)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no usable rows (%d rejected): %w", len(issues), ml.ErrEmptyFrame)
	}

	rows := make([]ml.FeatureRow, 0, len(cleaned))
	labels := make([]int, 0, len(cleaned))
	for _, record := range cleaned {
		row, label, err := convert(record, schema)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
		labels = append(labels, label)
	}
	frame, err := ml.NewFrame(rows)
	if err != nil {
		return nil, err
	}
	return &Dataset{Frame: frame, Labels: labels, Issues: issues, Stats: cleaner.Stats()}, nil
}

func checkHeader(header []string, schema Schema) error {
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if name == "" {
			return errors.New("header has an empty column name")
		}
		if seen[name] {
			return fmt.Errorf("header lists %s twice", name)
		}
		seen[name] = true
	}
	if !seen[schema.LabelColumn] {
		return fmt.Errorf("header has no label column %s", schema.LabelColumn)
	}
	for _, name := range schema.CategoricalColumns {
		if !seen[name] {
			return &ml.MissingFeatureError{Feature: name}
		}
	}
	return nil
}

func convert(record *Record, schema Schema) (ml.FeatureRow, int, error) {
	if len(record.Cells) != len(record.Header) {
		return nil, 0, fmt.Errorf("line %d: %d cells for %d columns", record.Line, len(record.Cells), len(record.Header))
	}
	row := make(ml.FeatureRow, 0, len(record.Header)-1)
	label := -1
	for i, name := range record.Header {
		cell := record.Cells[i]
		switch {
		case name == schema.LabelColumn:
			v, err := strconv.Atoi(cell)
			if err != nil {
				return nil, 0, fmt.Errorf("line %d: label %q: %w", record.Line, cell, err)
			}
			label = v
		case slices.Contains(schema.CategoricalColumns, name):
			row = append(row, ml.Field{Name: name, Value: ml.Category(cell)})
		default:
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("line %d: column %s: %w", record.Line, name, err)
			}
			row = append(row, ml.Field{Name: name, Value: ml.Number(v)})
		}
	}
	return row, label, nil
}
