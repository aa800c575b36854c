package config

import (
	_ "embed"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.uber.org/zap"

	"github.com/wippyai/native-addin/errors"
)

//go:embed schema.cue
var schemaSrc string

// Config is the add-in manifest.
type Config struct {
	Name        string   `json:"name"`
	Scripts     []string `json:"scripts"`
	Locale      string   `json:"locale"`
	MessageCode int32    `json:"messageCode"`
	Log         Log      `json:"log"`
	Memory      Memory   `json:"memory"`

	// Dir is the directory of the first manifest; relative script paths
	// resolve against it.
	Dir string `json:"-"`
}

type Log struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

type Memory struct {
	Limit uint32 `json:"limit"`
}

// Default returns the configuration used when no manifest is given.
func Default() *Config {
	cfg, err := decode(cuecontext.New(), nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads manifest files, unifies them with each other and the schema
// and decodes the result. Unknown fields and conflicting values are
// errors.
func Load(paths ...string) (*Config, error) {
	ctx := cuecontext.New()
	values := make([]cue.Value, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read manifest")
		}
		v := ctx.CompileBytes(content, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, errors.ParseFailed(errors.PhaseConfig, path, err)
		}
		values = append(values, v)
	}

	cfg, err := decode(ctx, values)
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		cfg.Dir = filepath.Dir(paths[0])
	}
	return cfg, nil
}

// Parse decodes a single manifest held in memory.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, errors.ParseFailed(errors.PhaseConfig, filename, err)
	}
	return decode(ctx, []cue.Value{v})
}

func decode(ctx *cue.Context, values []cue.Value) (*Config, error) {
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return nil, errors.ParseFailed(errors.PhaseConfig, "schema", err)
	}

	merged := schema
	for _, v := range values {
		merged = merged.Unify(v)
	}
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "validate manifest")
	}

	var cfg Config
	if err := merged.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode manifest")
	}
	return &cfg, nil
}

// ScriptPaths returns the script paths resolved against Dir.
func (c *Config) ScriptPaths() []string {
	out := make([]string, len(c.Scripts))
	for i, s := range c.Scripts {
		if filepath.IsAbs(s) || c.Dir == "" {
			out[i] = s
		} else {
			out[i] = filepath.Join(c.Dir, s)
		}
	}
	return out
}

// Logger builds the zap logger described by the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, errors.ParseFailed(errors.PhaseConfig, "log.level", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
