package fixture

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// Fixture is a decoded fixture.
type Fixture struct {
	DBType       string                 `json:"db_type"`
	Sites        map[string]Site        `json:"site"`
	Series       []string               `json:"series"`
	Algorithms   map[string]Algorithm   `json:"algorithm"`
	Groups       map[string]Group       `json:"group"`
	Computations map[string]Computation `json:"computation"`
	Derived      []Derived              `json:"derived"`
}

// Site is a named location.
type Site struct {
	Description string `json:"description"`
}

// Algorithm declares an algorithm.
type Algorithm struct {
	ExecClass string            `json:"exec_class"`
	Comment   string            `json:"comment"`
	PropNames []string          `json:"prop_names"`
	Props     map[string]string `json:"props"`
	Parms     []AlgoParm        `json:"parms"`
}

// AlgoParm declares an algorithm role; Type is "i" or "o".
type AlgoParm struct {
	Role string `json:"role"`
	Type string `json:"type"`
}

// Group declares a time-series group.
type Group struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Members     []string  `json:"members"`
	Criteria    Criteria  `json:"criteria"`
	Operands    []Operand `json:"operands"`
}

// Criteria selects series by attribute.
type Criteria struct {
	Sites     []string `json:"sites"`
	DataTypes []string `json:"data_types"`
	Intervals []string `json:"intervals"`
}

// Operand combines a named subgroup into a group.
type Operand struct {
	Op    string `json:"op"`
	Group string `json:"group"`
}

// Computation declares a computation. A computation with Group set is a
// group computation.
type Computation struct {
	ID        int64               `json:"id"`
	Algorithm string              `json:"algorithm"`
	Enabled   bool                `json:"enabled"`
	Group     string              `json:"group"`
	Comment   string              `json:"comment"`
	Props     map[string]string   `json:"props"`
	Parms     map[string]Identity `json:"parms"`
}

// Identity is a parameter binding: either a full unique string in TSID,
// or individual fields. Fields left empty are inherited when the
// parameter is applied to a group member.
type Identity struct {
	TSID          string `json:"tsid"`
	Site          string `json:"site"`
	DataType      string `json:"data_type"`
	Interval      string `json:"interval"`
	TableSelector string `json:"table_selector"`
	ModelID       int64  `json:"model_id"`
}

// Derived records data a computation has already produced.
type Derived struct {
	Computation string `json:"computation"`
	TSID        string `json:"tsid"`
	Samples     int64  `json:"samples"`
}

// Error is a fixture error with its CUE position when known.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads a fixture from a .cue file or from the CUE package in a
// directory.
func Load(path string) (*Fixture, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, &Error{Message: fmt.Sprintf("no CUE instances in %s", path)}
		}
		if err := instances[0].Err; err != nil {
			return nil, cueError(err)
		}
		v = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load fixture: %w", err)
		}
		v = ctx.CompileBytes(data, cue.Filename(filepath.Base(path)))
	}
	return decode(ctx, v)
}

// Parse decodes a fixture from CUE source.
func Parse(filename string, src []byte) (*Fixture, error) {
	ctx := cuecontext.New()
	return decode(ctx, ctx.CompileBytes(src, cue.Filename(filename)))
}

func decode(ctx *cue.Context, v cue.Value) (*Fixture, error) {
	if err := v.Err(); err != nil {
		return nil, cueError(err)
	}
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Fixture"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("fixture schema: %w", err)
	}

	u := schema.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(err)
	}
	var fx Fixture
	if err := u.Decode(&fx); err != nil {
		return nil, cueError(err)
	}
	if err := fx.check(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// check verifies the references between declarations.
func (fx *Fixture) check() error {
	var errs []error
	for name, g := range fx.Groups {
		for _, op := range g.Operands {
			if _, ok := fx.Groups[op.Group]; !ok {
				errs = append(errs, &Error{Message: fmt.Sprintf("group %q: unknown operand group %q", name, op.Group)})
			}
		}
	}
	for name, c := range fx.Computations {
		alg, ok := fx.Algorithms[c.Algorithm]
		if !ok {
			errs = append(errs, &Error{Message: fmt.Sprintf("computation %q: unknown algorithm %q", name, c.Algorithm)})
			continue
		}
		if c.Group != "" {
			if _, ok := fx.Groups[c.Group]; !ok {
				errs = append(errs, &Error{Message: fmt.Sprintf("computation %q: unknown group %q", name, c.Group)})
			}
		}
		for role := range c.Parms {
			if !hasRole(alg, role) {
				errs = append(errs, &Error{Message: fmt.Sprintf("computation %q: algorithm %q has no role %q", name, c.Algorithm, role)})
			}
		}
	}
	for i, d := range fx.Derived {
		if _, ok := fx.Computations[d.Computation]; !ok {
			errs = append(errs, &Error{Message: fmt.Sprintf("derived[%d]: unknown computation %q", i, d.Computation)})
		}
	}
	return errors.Join(errs...)
}

func hasRole(alg Algorithm, role string) bool {
	for _, p := range alg.Parms {
		if p.Role == role {
			return true
		}
	}
	return false
}

// cueError keeps the position of the first CUE error.
func cueError(err error) error {
	var ce cueerrors.Error
	if errors.As(err, &ce) {
		return &Error{Message: err.Error(), Pos: ce.Position()}
	}
	return &Error{Message: err.Error()}
}
