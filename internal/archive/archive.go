package archive

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/compgroup/internal/ir"
)

// Format is an archive file format.
type Format string

const (
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// FormatFor returns the format selected by the extension of path.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatXML
}

// Document is the archive content.
type Document struct {
	XMLName      xml.Name      `xml:"Database" yaml:"-"`
	Algorithms   []Algorithm   `xml:"Algorithm" yaml:"algorithms"`
	Computations []Computation `xml:"Computation" yaml:"computations"`
}

// Property is a name/value pair.
type Property struct {
	Name  string `xml:"name,attr" yaml:"name"`
	Value string `xml:",chardata" yaml:"value"`
}

// Algorithm is an archived algorithm.
type Algorithm struct {
	Name      string     `xml:"name,attr" yaml:"name"`
	ExecClass string     `xml:"ExecClass" yaml:"exec_class"`
	Comment   string     `xml:"Comment,omitempty" yaml:"comment,omitempty"`
	Props     []Property `xml:"AlgoProperty" yaml:"props,omitempty"`
	Parms     []AlgoParm `xml:"AlgoParm" yaml:"parms"`
}

// AlgoParm is an archived algorithm role.
type AlgoParm struct {
	RoleName string `xml:"roleName,attr" yaml:"role"`
	ParmType string `xml:"ParmType" yaml:"type"`
}

// Computation is an archived computation.
type Computation struct {
	ID            int64      `xml:"id,attr" yaml:"id"`
	Name          string     `xml:"name,attr" yaml:"name"`
	Enabled       bool       `xml:"Enabled" yaml:"enabled"`
	AlgorithmName string     `xml:"AlgorithmName" yaml:"algorithm"`
	GroupName     string     `xml:"GroupName,omitempty" yaml:"group,omitempty"`
	Comment       string     `xml:"Comment,omitempty" yaml:"comment,omitempty"`
	Props         []Property `xml:"CompProperty" yaml:"props,omitempty"`
	Parms         []CompParm `xml:"CompParm" yaml:"parms"`
}

// CompParm is an archived computation parameter.
type CompParm struct {
	RoleName      string `xml:"roleName,attr" yaml:"role"`
	SiteName      string `xml:"SiteName,omitempty" yaml:"site,omitempty"`
	DataType      string `xml:"DataType,omitempty" yaml:"data_type,omitempty"`
	Interval      string `xml:"Interval,omitempty" yaml:"interval,omitempty"`
	TableSelector string `xml:"TableSelector,omitempty" yaml:"table_selector,omitempty"`
	ModelID       int64  `xml:"ModelId,omitempty" yaml:"model_id,omitempty"`
}

// NewDocument builds an archive document. Algorithms come first in the
// file; the algorithm name of a computation is taken from algs when the
// computation does not carry one.
func NewDocument(comps []*ir.Computation, algs []*ir.Algorithm) *Document {
	doc := &Document{}
	names := make(map[ir.Key]string, len(algs))
	for _, a := range algs {
		names[a.ID] = a.Name
		da := Algorithm{
			Name:      a.Name,
			ExecClass: a.ExecClass,
			Comment:   a.Comment,
			Props:     properties(a.Props),
		}
		for _, p := range a.Parms {
			da.Parms = append(da.Parms, AlgoParm{RoleName: p.RoleName, ParmType: string(p.Direction)})
		}
		doc.Algorithms = append(doc.Algorithms, da)
	}
	for _, c := range comps {
		dc := Computation{
			ID:            int64(c.ID),
			Name:          c.Name,
			Enabled:       c.Enabled,
			AlgorithmName: c.AlgorithmName,
			GroupName:     c.GroupName,
			Comment:       c.Comment,
			Props:         properties(c.Props),
		}
		if dc.AlgorithmName == "" {
			dc.AlgorithmName = names[c.AlgorithmID]
		}
		for _, p := range c.Parms {
			dc.Parms = append(dc.Parms, CompParm{
				RoleName:      p.RoleName,
				SiteName:      p.Site,
				DataType:      p.DataType,
				Interval:      p.Interval,
				TableSelector: p.TableSelector,
				ModelID:       p.ModelID,
			})
		}
		doc.Computations = append(doc.Computations, dc)
	}
	return doc
}

func properties(m map[string]string) []Property {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Property, 0, len(keys))
	for _, k := range keys {
		out = append(out, Property{Name: k, Value: m[k]})
	}
	return out
}

// Encode writes doc to w in format f.
func Encode(w io.Writer, f Format, doc *Document) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatXML:
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return fmt.Errorf("encode xml: %w", err)
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode xml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode xml: %w", err)
		}
		_, err := io.WriteString(w, "\n")
		return err
	}
	return fmt.Errorf("unknown archive format %q", f)
}

// Decode reads a document in format f from r.
func Decode(r io.Reader, f Format) (*Document, error) {
	doc := &Document{}
	switch f {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatXML:
		if err := xml.NewDecoder(r).Decode(doc); err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown archive format %q", f)
	}
	return doc, nil
}

// Exporter writes archive files.
type Exporter struct {
	perm os.FileMode
}

// NewExporter creates an exporter writing files with mode 0644.
func NewExporter() *Exporter {
	return &Exporter{perm: 0o644}
}

// Export writes comps and algs to path, replacing any existing file. The
// file is written to a temporary name in the same directory and renamed,
// so a failed export never leaves a partial archive behind.
func (e *Exporter) Export(ctx context.Context, path string, comps []*ir.Computation, algs []*ir.Algorithm) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, FormatFor(path), NewDocument(comps, algs)); err != nil {
		tmp.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := tmp.Chmod(e.perm); err != nil {
		tmp.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// Read decodes the archive at path.
func Read(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	defer f.Close()
	doc, err := Decode(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	return doc, nil
}
