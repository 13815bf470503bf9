package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tierc/internal/ast"
)

// Scenario is one differential test.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Module is the path of the module JSON.
	Module string `yaml:"module"`

	// Entry names the function to call after the module body.
	Entry string `yaml:"entry,omitempty"`
	// Args are the entry arguments: integers, strings, booleans, null or
	// lists of those.
	Args []any `yaml:"args,omitempty"`

	Config Overrides `yaml:"config,omitempty"`

	// Feedback is the path of a runtime feedback artifact.
	Feedback string `yaml:"feedback,omitempty"`

	MaxSteps int `yaml:"max_steps,omitempty"`

	Assertions []Assertion `yaml:"assertions"`

	// Node is the decoded module. LoadScenario fills it from Module.
	Node *ast.Node `yaml:"-"`
}

// Overrides adjust the default tier configuration. The limit is not
// configurable: every scenario runs under all of them.
type Overrides struct {
	Width      int    `yaml:"width,omitempty"`
	HintPolicy string `yaml:"hint_policy,omitempty"`
	Analytic   *bool  `yaml:"analytic,omitempty"`
	Profile    bool   `yaml:"profile,omitempty"`
}

// Assertion checks one property of a run.
type Assertion struct {
	Type string `yaml:"type"`

	Lines []string `yaml:"lines,omitempty"`
	Value string   `yaml:"value,omitempty"`

	Class   string `yaml:"class,omitempty"`
	Message string `yaml:"message,omitempty"`

	// Limit selects the outcome for deopts and construct. Defaults to
	// static.
	Limit  string `yaml:"limit,omitempty"`
	Count  *int   `yaml:"count,omitempty"`
	Reason string `yaml:"reason,omitempty"`

	Function string `yaml:"function,omitempty"`
	Pattern  string `yaml:"pattern,omitempty"`
	Tier     string `yaml:"tier,omitempty"`

	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertOutput       = "output"
	AssertResult       = "result"
	AssertException    = "exception"
	AssertDeopts       = "deopts"
	AssertConstruct    = "construct"
	AssertCompileError = "compile_error"
)

// LoadScenario reads a scenario file and decodes its module. Unknown
// fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	if scenario.Module != "" && !filepath.IsAbs(scenario.Module) {
		scenario.Module = filepath.Join(base, scenario.Module)
	}
	if scenario.Feedback != "" && !filepath.IsAbs(scenario.Feedback) {
		scenario.Feedback = filepath.Join(base, scenario.Feedback)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	if scenario.Node, err = ast.DecodeFile(scenario.Module); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file
// name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Module == "" {
		return fmt.Errorf("module is required")
	}
	if _, err := os.Stat(s.Module); os.IsNotExist(err) {
		return fmt.Errorf("module file not found: %s", s.Module)
	}
	if s.Feedback != "" {
		if _, err := os.Stat(s.Feedback); os.IsNotExist(err) {
			return fmt.Errorf("feedback file not found: %s", s.Feedback)
		}
	}
	if len(s.Args) > 0 && s.Entry == "" {
		return fmt.Errorf("args given without entry")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOutput:
		if a.Lines == nil {
			return fmt.Errorf("assertions[%d]: lines is required for output (use [] for none)", index)
		}
	case AssertResult:
		if a.Value == "" {
			return fmt.Errorf("assertions[%d]: value is required for result", index)
		}
	case AssertException:
		if a.Class == "" {
			return fmt.Errorf("assertions[%d]: class is required for exception", index)
		}
	case AssertDeopts:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for deopts", index)
		}
	case AssertConstruct:
		if a.Function == "" || a.Pattern == "" || a.Tier == "" {
			return fmt.Errorf("assertions[%d]: function, pattern and tier are required for construct", index)
		}
	case AssertCompileError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for compile_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
