package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Record is one CSV data line before it is converted into a feature row.
type Record struct {
	Line   int
	Header []string
	Cells  []string
}

func (r *Record) clone() *Record {
	return &Record{Line: r.Line, Header: r.Header, Cells: append([]string(nil), r.Cells...)}
}

// CleaningRule either passes a record through (possibly corrected) or rejects it.
type CleaningRule interface {
	Apply(*Record) (*Record, error)
	Name() string
}

type QualityIssue struct {
	Rule     string    `json:"rule"`
	Severity string    `json:"severity"` // low, medium, high
	Message  string    `json:"message"`
	Line     int       `json:"line"`
	Time     time.Time `json:"time"`
}

type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// Cleaner applies its rules to every record. A record failing any rule is
// rejected and reported; it is never kept.
type Cleaner struct {
	rules []CleaningRule

	mu    sync.Mutex
	stats CleaningStats
}

// NewCleaner returns a cleaner with the default rules for schema.
func NewCleaner(schema Schema) *Cleaner {
	c := &Cleaner{stats: CleaningStats{Issues: make(map[string]int64)}}
	c.AddRule(TrimRule{})
	c.AddRule(MissingValueRule{})
	c.AddRule(NewNumericRule(schema))
	c.AddRule(NewLabelRule(schema.LabelColumn))
	return c
}

func (c *Cleaner) AddRule(rule CleaningRule) {
	c.rules = append(c.rules, rule)
}

func (c *Cleaner) Rules() []string {
	names := make([]string, len(c.rules))
	for i, rule := range c.rules {
		names[i] = rule.Name()
	}
	return names
}

func (c *Cleaner) Clean(records []*Record) ([]*Record, []QualityIssue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats.Issues == nil {
		c.stats.Issues = make(map[string]int64)
	}

	var cleaned []*Record
	var issues []QualityIssue
	for _, record := range records {
		c.stats.TotalProcessed++
		current := record
		var rejected *QualityIssue
		for _, rule := range c.rules {
			next, err := rule.Apply(current)
			if err != nil {
				rejected = &QualityIssue{
					Rule:     rule.Name(),
					Severity: "high",
					Message:  err.Error(),
					Line:     record.Line,
					Time:     time.Now(),
				}
				c.stats.Issues[rule.Name()]++
				break
			}
			if next != nil {
				current = next
			}
		}
		if rejected != nil {
			c.stats.Rejected++
			issues = append(issues, *rejected)
			continue
		}
		if !equalCells(record.Cells, current.Cells) {
			c.stats.Corrected++
		}
		c.stats.Passed++
		cleaned = append(cleaned, current)
	}
	c.stats.LastClean = time.Now()
	return cleaned, issues
}

func (c *Cleaner) Stats() CleaningStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Issues = make(map[string]int64, len(c.stats.Issues))
	for k, v := range c.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

func equalCells(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TrimRule strips surrounding whitespace from every cell.
type TrimRule struct{}

func (TrimRule) Name() string { return "trim" }

func (TrimRule) Apply(record *Record) (*Record, error) {
	out := record.clone()
	for i, cell := range out.Cells {
		out.Cells[i] = strings.TrimSpace(cell)
	}
	return out, nil
}

type MissingValueRule struct{}

func (MissingValueRule) Name() string { return "missing_value" }

func (MissingValueRule) Apply(record *Record) (*Record, error) {
	if len(record.Cells) != len(record.Header) {
		return nil, fmt.Errorf("line %d has %d cells, header has %d", record.Line, len(record.Cells), len(record.Header))
	}
	for i, cell := range record.Cells {
		if cell == "" {
			return nil, fmt.Errorf("column %s is empty", record.Header[i])
		}
	}
	return record, nil
}

// NumericRule requires every measurement column to hold a finite number no
// smaller than Min. Categorical and label columns are skipped.
type NumericRule struct {
	Min  float64
	skip map[string]bool
}

func NewNumericRule(schema Schema) *NumericRule {
	skip := map[string]bool{schema.LabelColumn: true}
	for _, name := range schema.CategoricalColumns {
		skip[name] = true
	}
	return &NumericRule{Min: 0, skip: skip}
}

func (r *NumericRule) Name() string { return "numeric_validation" }

func (r *NumericRule) Apply(record *Record) (*Record, error) {
	for i, cell := range record.Cells {
		name := record.Header[i]
		if r.skip[name] {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: %q is not a number", name, cell)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("column %s: %q is not finite", name, cell)
		}
		if v < r.Min {
			return nil, fmt.Errorf("column %s: %g is below %g", name, v, r.Min)
		}
	}
	return record, nil
}

// LabelRule requires the label column to be 0 or 1 and rewrites it to that digit.
type LabelRule struct {
	Column string
}

func NewLabelRule(column string) *LabelRule {
	return &LabelRule{Column: column}
}

func (r *LabelRule) Name() string { return "label_validation" }

func (r *LabelRule) Apply(record *Record) (*Record, error) {
	for i, name := range record.Header {
		if name != r.Column {
			continue
		}
		v, err := strconv.ParseFloat(record.Cells[i], 64)
		if err != nil || (v != 0 && v != 1) {
			return nil, fmt.Errorf("label %s: %q is not 0 or 1", r.Column, record.Cells[i])
		}
		out := record.clone()
		out.Cells[i] = strconv.Itoa(int(v))
		return out, nil
	}
	return nil, fmt.Errorf("label column %s not found", r.Column)
}
