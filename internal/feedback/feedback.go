// Package feedback reads, validates and writes the versioned runtime
// feedback artifact, and turns it into the stability signals the tier
// classifier consumes.
package feedback

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/Masterminds/semver/v3"

	"github.com/roach88/tierc/internal/world"
)

//go:embed schema.cue
var schemaCUE string

const (
	// Kind is the artifact kind tag.
	Kind = "runtime_feedback"
	// SchemaVersion is the version written by this package.
	SchemaVersion = "1.0.0"
	// Accepted is the range of schema versions this package reads.
	Accepted = ">= 1.0.0, < 2.0.0"
)

// Error codes (E400-E499).
const (
	ErrCodeParse   = "E401"
	ErrCodeVersion = "E402"
	ErrCodeSchema  = "E403"
)

// ValidationError describes why an artifact was rejected.
type ValidationError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Site is the feedback for one operand site. Type is the most frequently
// observed type and Hits the number of samples that had it.
type Site struct {
	Type    string `json:"type"`
	Samples int    `json:"samples"`
	Hits    int    `json:"hits"`
}

// Artifact is a runtime feedback document.
type Artifact struct {
	SchemaVersion string          `json:"schema_version"`
	Kind          string          `json:"kind"`
	Sites         map[string]Site `json:"sites"`
	DeoptReasons  map[string]int  `json:"deopt_reasons,omitempty"`
}

// Thresholds decide when a site is stable.
type Thresholds struct {
	MinSamples    int
	StablePercent int
}

// DefaultThresholds returns the default stability thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MinSamples: 8, StablePercent: 95}
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
)

func schema() (*cue.Context, cue.Value) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		schemaVal = schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Feedback"))
	})
	return schemaCtx, schemaVal
}

// Parse decodes and validates an artifact.
func Parse(data []byte, filename string) (*Artifact, error) {
	var head struct {
		SchemaVersion string `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &ValidationError{Code: ErrCodeParse, Message: err.Error()}
	}
	if err := checkVersion(head.SchemaVersion); err != nil {
		return nil, err
	}

	ctx, def := schema()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueError(ErrCodeParse, err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeSchema, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ValidationError{Code: ErrCodeParse, Message: err.Error()}
	}
	if a.Sites == nil {
		a.Sites = make(map[string]Site)
	}
	return &a, nil
}

// Load reads and validates the artifact at path.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}
	return Parse(data, path)
}

func checkVersion(s string) error {
	if s == "" {
		return &ValidationError{Code: ErrCodeVersion, Message: "schema_version is required"}
	}
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return &ValidationError{Code: ErrCodeVersion, Message: fmt.Sprintf("schema_version %q: %v", s, err)}
	}
	c, err := semver.NewConstraint(Accepted)
	if err != nil {
		return fmt.Errorf("feedback constraint: %w", err)
	}
	if !c.Check(v) {
		return &ValidationError{Code: ErrCodeVersion, Message: fmt.Sprintf("schema_version %s is not %s", v, Accepted)}
	}
	return nil
}

func cueError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	ve := &ValidationError{Code: code, Message: first.Error()}
	if ps := cueerrors.Positions(first); len(ps) > 0 {
		ve.Pos = ps[0]
	}
	return ve
}

// Stable reports whether s is a stable int signal under th.
func (s Site) Stable(th Thresholds) bool {
	return s.Type == "int" && s.Samples >= th.MinSamples && s.Hits*100 >= th.StablePercent*s.Samples
}

// Signals converts the artifact into world signals.
func (a *Artifact) Signals(th Thresholds) map[string]world.Signal {
	out := make(map[string]world.Signal, len(a.Sites))
	for site, s := range a.Sites {
		out[site] = world.Signal{Type: s.Type, Samples: s.Samples, Hits: s.Hits, Stable: s.Stable(th)}
	}
	return out
}

// Marshal encodes the artifact. Map keys are sorted, so equal artifacts
// encode identically.
func (a *Artifact) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feedback: %w", err)
	}
	return append(data, '\n'), nil
}

// Merge adds the samples and deopt counts of b into a. Per site, the
// merged type is recomputed from both sides' majority counts, so merging
// is only exact when both sides agree on the type.
func (a *Artifact) Merge(b *Artifact) {
	if a.Sites == nil {
		a.Sites = make(map[string]Site)
	}
	for _, site := range slices.Sorted(maps.Keys(b.Sites)) {
		x, y := a.Sites[site], b.Sites[site]
		switch {
		case x.Samples == 0:
			a.Sites[site] = y
		case x.Type == y.Type:
			a.Sites[site] = Site{Type: x.Type, Samples: x.Samples + y.Samples, Hits: x.Hits + y.Hits}
		case y.Hits > x.Hits:
			a.Sites[site] = Site{Type: y.Type, Samples: x.Samples + y.Samples, Hits: y.Hits}
		default:
			a.Sites[site] = Site{Type: x.Type, Samples: x.Samples + y.Samples, Hits: x.Hits}
		}
	}
	for reason, n := range b.DeoptReasons {
		if a.DeoptReasons == nil {
			a.DeoptReasons = make(map[string]int)
		}
		a.DeoptReasons[reason] += n
	}
}
