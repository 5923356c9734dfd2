package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RetrievedFile is the canonical name of the stored dataset inside DestDir.
const RetrievedFile = "data_fire.csv"

type RetrieveConfig struct {
	Source   string        `yaml:"source"`
	DestDir  string        `yaml:"dest_dir"`
	Encoding string        `yaml:"encoding"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Retrieve reads the CSV at config.Source (a local path or an http(s) URL),
// decodes it to UTF-8 and stores it as DestDir/data_fire.csv.
func Retrieve(ctx context.Context, config RetrieveConfig) (string, error) {
	if config.Source == "" {
		return "", errors.New("dataset source is required")
	}
	if config.DestDir == "" {
		return "", errors.New("dataset destination is required")
	}

	body, err := openSource(ctx, config)
	if err != nil {
		return "", err
	}
	defer body.Close()

	decoder, err := decoderFor(config.Encoding)
	if err != nil {
		return "", err
	}
	reader := csv.NewReader(transform.NewReader(body, decoder))
	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse dataset: %w", err)
	}
	if len(records) < 2 {
		return "", errors.New("dataset has no data rows")
	}
	for i, name := range records[0] {
		records[0][i] = strings.TrimSpace(name)
	}

	if err := os.MkdirAll(config.DestDir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}
	path := filepath.Join(config.DestDir, RetrievedFile)
	if err := writeCSV(path, records); err != nil {
		return "", err
	}
	return fmt.Sprintf("Data stored in %s", path), nil
}

func openSource(ctx context.Context, config RetrieveConfig) (io.ReadCloser, error) {
	if !strings.HasPrefix(config.Source, "http://") && !strings.HasPrefix(config.Source, "https://") {
		f, err := os.Open(config.Source)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		return f, nil
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, config.Source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download dataset: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download dataset: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// decoderFor maps a WHATWG encoding label to a decoder. A byte order mark, when
// present, takes precedence over the label.
func decoderFor(label string) (transform.Transformer, error) {
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	return unicode.BOMOverride(enc.NewDecoder()), nil
}

func writeCSV(path string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dataset-*.tmp")
	if err != nil {
		return fmt.Errorf("create dataset file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
