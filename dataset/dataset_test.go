package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fae/ml"
)

const fireCSV = `SIZE,FUEL,DISTANCE,DESIBEL,AIRFLOW,FREQUENCY,STATUS
1,gasoline,10,96,0,75,0
1,gasoline,20,96,0,72,1
 3 ,lpg,30,85,2.6,70,1
2,kerosene,,90,1,40,0
2,thinner,abc,90,1,40,0
2,thinner,40,-5,1,40,0
4,lpg,50,100,3,30,2
5,kerosene,190,72,0.5,10,1.0
`

func TestReadCleansAndConverts(t *testing.T) {
	ds, err := Read(strings.NewReader(fireCSV), FireSchema(), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, ds.Frame.Len())
	assert.Equal(t, []int{0, 1, 1, 1}, ds.Labels)
	assert.Equal(t, []string{"SIZE", "FUEL", "DISTANCE", "DESIBEL", "AIRFLOW", "FREQUENCY"}, ds.Frame.Columns())

	fuel, ok := ds.Frame.Column("FUEL")
	require.True(t, ok)
	assert.Equal(t, ml.Category("lpg"), fuel[2])
	size, _ := ds.Frame.Column("SIZE")
	assert.Equal(t, ml.Number(3), size[2])

	rules := make([]string, 0, len(ds.Issues))
	lines := make([]int, 0, len(ds.Issues))
	for _, issue := range ds.Issues {
		rules = append(rules, issue.Rule)
		lines = append(lines, issue.Line)
	}
	assert.Equal(t, []string{"missing_value", "numeric_validation", "numeric_validation", "label_validation"}, rules)
	assert.Equal(t, []int{5, 6, 7, 8}, lines)

	assert.EqualValues(t, 8, ds.Stats.TotalProcessed)
	assert.EqualValues(t, 4, ds.Stats.Passed)
	assert.EqualValues(t, 4, ds.Stats.Rejected)
	// " 3 " is trimmed and "1.0" is rewritten as "1".
	assert.EqualValues(t, 2, ds.Stats.Corrected)
}

func TestReadRejectsBadHeaders(t *testing.T) {
	_, err := Read(strings.NewReader("SIZE,FUEL\n1,lpg\n"), FireSchema(), nil)
	assert.ErrorContains(t, err, "STATUS")

	_, err = Read(strings.NewReader("SIZE,STATUS\n1,0\n"), FireSchema(), nil)
	var missing *ml.MissingFeatureError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "FUEL", missing.Feature)

	_, err = Read(strings.NewReader("SIZE,SIZE,FUEL,STATUS\n1,1,lpg,0\n"), FireSchema(), nil)
	assert.ErrorContains(t, err, "twice")
}

func TestReadWithoutUsableRows(t *testing.T) {
	_, err := Read(strings.NewReader("SIZE,FUEL,STATUS\n,lpg,0\n"), FireSchema(), nil)
	assert.True(t, errors.Is(err, ml.ErrEmptyFrame))
}

func TestReadShortRowWithCustomCleaner(t *testing.T) {
	cleaner := &Cleaner{}
	cleaner.AddRule(TrimRule{})

	_, err := Read(strings.NewReader("SIZE,FUEL,STATUS\n1,lpg\n"), FireSchema(), cleaner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2: 2 cells for 3 columns")

	_, err = Read(strings.NewReader("SIZE,FUEL,STATUS\n1,lpg,0,9\n"), FireSchema(), cleaner)
	assert.ErrorContains(t, err, "4 cells for 3 columns")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), RetrievedFile)
	require.NoError(t, os.WriteFile(path, []byte(fireCSV), 0o600))

	ds, err := Load(path, FireSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Frame.Len())

	_, err = Load(filepath.Join(t.TempDir(), "none.csv"), FireSchema(), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRetrieveLocalFileDecodesCharset(t *testing.T) {
	src := filepath.Join(t.TempDir(), "source.csv")
	// 0xE9 is "é" in windows-1252.
	payload := []byte("SIZE,FUEL,STATUS\n1,caf\xe9,0\n")
	require.NoError(t, os.WriteFile(src, payload, 0o600))

	dest := filepath.Join(t.TempDir(), "datasets")
	msg, err := Retrieve(context.Background(), RetrieveConfig{Source: src, DestDir: dest, Encoding: "windows-1252"})
	require.NoError(t, err)

	path := filepath.Join(dest, RetrievedFile)
	assert.Equal(t, "Data stored in "+path, msg)
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SIZE,FUEL,STATUS\n1,café,0\n", string(stored))
}

func TestRetrieveStripsByteOrderMark(t *testing.T) {
	src := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(src, []byte("\xef\xbb\xbfSIZE,STATUS\n1,0\n"), 0o600))

	dest := t.TempDir()
	_, err := Retrieve(context.Background(), RetrieveConfig{Source: src, DestDir: dest})
	require.NoError(t, err)
	stored, err := os.ReadFile(filepath.Join(dest, RetrievedFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(stored), "SIZE,"))
}

func TestRetrieveOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fire.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(fireCSV))
	}))
	defer server.Close()

	dest := t.TempDir()
	_, err := Retrieve(context.Background(), RetrieveConfig{Source: server.URL + "/fire.csv", DestDir: dest})
	require.NoError(t, err)

	ds, err := Load(filepath.Join(dest, RetrievedFile), FireSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Frame.Len())

	_, err = Retrieve(context.Background(), RetrieveConfig{Source: server.URL + "/missing.csv", DestDir: dest})
	assert.ErrorContains(t, err, "404")
}

func TestRetrieveValidatesConfig(t *testing.T) {
	_, err := Retrieve(context.Background(), RetrieveConfig{DestDir: t.TempDir()})
	assert.Error(t, err)
	_, err = Retrieve(context.Background(), RetrieveConfig{Source: "x.csv"})
	assert.Error(t, err)

	src := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(src, []byte("SIZE,STATUS\n1,0\n"), 0o600))
	_, err = Retrieve(context.Background(), RetrieveConfig{Source: src, DestDir: t.TempDir(), Encoding: "klingon"})
	assert.ErrorContains(t, err, "klingon")
}

func TestSplitFrameIsSeeded(t *testing.T) {
	rows := make([]ml.FeatureRow, 10)
	labels := make([]int, 10)
	for i := range rows {
		rows[i] = ml.FeatureRow{{Name: "SIZE", Value: ml.Number(float64(i))}}
		labels[i] = i % 2
	}
	frame, err := ml.NewFrame(rows)
	require.NoError(t, err)

	a, err := SplitFrame(frame, labels, 0.2, 42)
	require.NoError(t, err)
	b, err := SplitFrame(frame, labels, 0.2, 42)
	require.NoError(t, err)

	assert.Equal(t, 8, a.Train.Len())
	assert.Equal(t, 2, a.Test.Len())
	assert.Equal(t, a.Test.Rows(), b.Test.Rows())
	assert.Equal(t, a.TestLabels, b.TestLabels)

	// Every row lands in exactly one side with its own label.
	seen := map[float64]bool{}
	for _, part := range []struct {
		frame  *ml.Frame
		labels []int
	}{{a.Train, a.TrainLabels}, {a.Test, a.TestLabels}} {
		col, _ := part.frame.Column("SIZE")
		for i, v := range col {
			assert.False(t, seen[v.Number])
			seen[v.Number] = true
			assert.Equal(t, int(v.Number)%2, part.labels[i])
		}
	}
	assert.Len(t, seen, 10)

	_, err = SplitFrame(frame, labels, 1, 42)
	assert.Error(t, err)
	_, err = SplitFrame(frame, labels[:3], 0.2, 42)
	assert.Error(t, err)
}
