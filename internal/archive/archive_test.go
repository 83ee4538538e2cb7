package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/compgroup/internal/ir"
)

func sampleAlgorithm() *ir.Algorithm {
	return &ir.Algorithm{
		ID:        7,
		Name:      "CopyAlgorithm",
		ExecClass: "decodes.tsdb.algo.CopyAlgorithm",
		Props:     map[string]string{"offset": "0", "multiplier": "1.0"},
		Parms: []ir.AlgoParm{
			{RoleName: "input", Direction: ir.Input},
			{RoleName: "output", Direction: ir.Output},
		},
	}
}

func sampleComputation() *ir.Computation {
	in := ir.MustParseTSID("SiteA.Stage.15Minute.raw")
	out := ir.MustParseTSID("SiteA.Stage.15Minute.rev")
	return &ir.Computation{
		ID:          12,
		Name:        "copy-A",
		AlgorithmID: 7,
		Enabled:     true,
		Props:       map[string]string{"multiplier": "2.5"},
		Parms: []*ir.Parameter{
			{RoleName: "input", Direction: ir.Input, Identity: in.Identity},
			{RoleName: "output", Direction: ir.Output, Identity: out.Identity},
		},
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"disposed-comps.xml", FormatXML},
		{"out/archive.YAML", FormatYAML},
		{"archive.yml", FormatYAML},
		{"archive", FormatXML},
		{"archive.txt", FormatXML},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFor(tt.path))
		})
	}
}

func TestNewDocument_AlgorithmNameFromAlgorithms(t *testing.T) {
	doc := NewDocument([]*ir.Computation{sampleComputation()}, []*ir.Algorithm{sampleAlgorithm()})

	require.Len(t, doc.Algorithms, 1)
	require.Len(t, doc.Computations, 1)
	assert.Equal(t, "CopyAlgorithm", doc.Computations[0].AlgorithmName)
	assert.Equal(t, []Property{{Name: "multiplier", Value: "1.0"}, {Name: "offset", Value: "0"}},
		doc.Algorithms[0].Props, "properties are sorted by name")
	assert.Equal(t, "i", doc.Algorithms[0].Parms[0].ParmType)
}

func TestEncode_XMLAlgorithmsFirst(t *testing.T) {
	var buf bytes.Buffer
	doc := NewDocument([]*ir.Computation{sampleComputation()}, []*ir.Algorithm{sampleAlgorithm()})
	require.NoError(t, Encode(&buf, FormatXML, doc))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	algAt := strings.Index(out, "<Algorithm ")
	compAt := strings.Index(out, "<Computation ")
	require.NotEqual(t, -1, algAt)
	require.NotEqual(t, -1, compAt)
	assert.Less(t, algAt, compAt)
	assert.Contains(t, out, `<CompProperty name="multiplier">2.5</CompProperty>`)
	assert.Contains(t, out, "<SiteName>SiteA</SiteName>")
}

func TestEncodeDecode(t *testing.T) {
	for _, f := range []Format{FormatXML, FormatYAML} {
		t.Run(string(f), func(t *testing.T) {
			doc := NewDocument([]*ir.Computation{sampleComputation()}, []*ir.Algorithm{sampleAlgorithm()})
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, f, doc))

			got, err := Decode(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, doc.Algorithms, got.Algorithms)
			assert.Equal(t, doc.Computations, got.Computations)
		})
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, Format("csv"), &Document{})
	assert.Error(t, err)
}

func TestExporter_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disposed.yaml")
	err := NewExporter().Export(context.Background(), path,
		[]*ir.Computation{sampleComputation()}, []*ir.Algorithm{sampleAlgorithm()})
	require.NoError(t, err)

	doc, err := Read(path)
	require.NoError(t, err)
	require.Len(t, doc.Computations, 1)
	assert.Equal(t, "copy-A", doc.Computations[0].Name)
	assert.Equal(t, int64(12), doc.Computations[0].ID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file is left behind")
}

func TestExporter_ReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disposed.xml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, NewExporter().Export(context.Background(), path, nil, nil))

	doc, err := Read(path)
	require.NoError(t, err)
	assert.Empty(t, doc.Computations)
}

func TestExporter_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "disposed.xml")
	err := NewExporter().Export(context.Background(), path, []*ir.Computation{sampleComputation()}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export")
}

func TestExporter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "disposed.xml")

	err := NewExporter().Export(ctx, path, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
