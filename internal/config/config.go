// Package config loads tier configuration from CUE files and the
// environment.
//
// Precedence, lowest first: schema defaults, the config file or
// directory, TIERC_* environment variables. Command-line flags are
// applied by the caller after Load.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/xyproto/env/v2"

	"github.com/roach88/tierc/internal/feedback"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/tier"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by Load.
const (
	EnvWidth      = "TIERC_WIDTH"
	EnvHintPolicy = "TIERC_HINT_POLICY"
	EnvLimit      = "TIERC_LIMIT"
	EnvAnalytic   = "TIERC_ANALYTIC"
	EnvWorkers    = "TIERC_WORKERS"
)

// Error codes (E500-E599).
const (
	ErrCodeNotFound = "E501"
	ErrCodeLoad     = "E502"
	ErrCodeSchema   = "E503"
	ErrCodeInvalid  = "E504"
)

// Error describes a rejected configuration.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config is the resolved configuration.
type Config struct {
	Tier tier.Config
	// Workers bounds parallel lowering; 0 means one per CPU.
	Workers    int
	Thresholds feedback.Thresholds
}

type fileConfig struct {
	Width      int    `json:"width"`
	HintPolicy string `json:"hint_policy"`
	Limit      string `json:"limit"`
	Analytic   bool   `json:"analytic"`
	Profile    bool   `json:"profile"`
	Workers    int    `json:"workers"`
	Feedback   struct {
		MinSamples    int `json:"min_samples"`
		StablePercent int `json:"stable_percent"`
	} `json:"feedback"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{Tier: tier.DefaultConfig(), Thresholds: feedback.DefaultThresholds()}
}

// Load resolves the configuration at path, which may be a .cue file, a
// directory of .cue files or empty, then applies environment overrides.
func Load(path string) (Config, error) {
	ctx := cuecontext.New()
	def := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileString("{}")
	if path != "" {
		var err error
		if user, err = loadValue(ctx, path); err != nil {
			return Config{}, err
		}
	}
	v := def.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, cueError(ErrCodeSchema, err)
	}

	var fc fileConfig
	if err := v.Decode(&fc); err != nil {
		return Config{}, cueError(ErrCodeSchema, err)
	}
	if err := fromEnv(&fc); err != nil {
		return Config{}, err
	}
	return fc.resolve()
}

func loadValue(ctx *cue.Context, path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("config not found: %s", path)}
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, &Error{Code: ErrCodeLoad, Message: err.Error()}
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, cueError(ErrCodeLoad, err)
		}
		return v, nil
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return cue.Value{}, &Error{Code: ErrCodeLoad, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &Error{Code: ErrCodeLoad, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, cueError(ErrCodeLoad, err)
	}
	return v, nil
}

func fromEnv(fc *fileConfig) error {
	// The env cache is filled once per process; refresh it so variables
	// set since the last Load are seen.
	env.Load()
	var err error
	if fc.Width, err = envInt(EnvWidth, fc.Width); err != nil {
		return err
	}
	fc.HintPolicy = env.Str(EnvHintPolicy, fc.HintPolicy)
	fc.Limit = env.Str(EnvLimit, fc.Limit)
	if env.Has(EnvAnalytic) {
		v := env.Str(EnvAnalytic)
		if !env.True(v) && !env.False(v) {
			return &Error{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s=%q: not a boolean", EnvAnalytic, v)}
		}
		fc.Analytic = env.True(v)
	}
	if fc.Workers, err = envInt(EnvWorkers, fc.Workers); err != nil {
		return err
	}
	return nil
}

// envInt reads an integer variable. A set but malformed value is an
// error, not the default.
func envInt(name string, def int) (int, error) {
	if !env.Has(name) {
		return def, nil
	}
	v := env.Str(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &Error{Code: ErrCodeInvalid, Message: fmt.Sprintf("%s=%q: not an integer", name, v)}
	}
	return n, nil
}

func (fc *fileConfig) resolve() (Config, error) {
	policy, err := tier.ParseHintPolicy(fc.HintPolicy)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Message: err.Error()}
	}
	limit, err := ir.ParseTier(fc.Limit)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Message: err.Error()}
	}
	c := Config{
		Tier: tier.Config{
			Width:      fc.Width,
			HintPolicy: policy,
			Limit:      limit,
			Analytic:   fc.Analytic,
			Profile:    fc.Profile,
		},
		Workers: fc.Workers,
		Thresholds: feedback.Thresholds{
			MinSamples:    fc.Feedback.MinSamples,
			StablePercent: fc.Feedback.StablePercent,
		},
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that can also arrive from the environment or
// from flags, bypassing the schema.
func (c Config) Validate() error {
	if err := c.Tier.Validate(); err != nil {
		return &Error{Code: ErrCodeInvalid, Message: err.Error()}
	}
	if c.Workers < 0 {
		return &Error{Code: ErrCodeInvalid, Message: fmt.Sprintf("workers %d: must not be negative", c.Workers)}
	}
	return nil
}

func cueError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}
	e := &Error{Code: code, Message: errs[0].Error()}
	if ps := cueerrors.Positions(errs[0]); len(ps) > 0 {
		e.Pos = ps[0]
	}
	return e
}
