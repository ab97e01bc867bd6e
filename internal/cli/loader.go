package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/retrograde-sim/retrograde/internal/compiler"
	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// stateFile is the YAML shape of an initial state file.
type stateFile struct {
	Turn      int64              `yaml:"turn"`
	Overlays  map[string]float64 `yaml:"overlays"`
	Variables map[string]float64 `yaml:"variables"`
}

// LoadState reads a world state from a YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently dropping values.
func LoadState(path string) (*world.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var sf stateFile
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}

	s := world.NewState()
	s.Turn = sf.Turn
	for k, v := range sf.Overlays {
		s.Overlays[k] = v
	}
	for k, v := range sf.Variables {
		s.Variables[k] = v
	}
	return s, nil
}

// loadRegistry compiles every rule file in a directory and installs the
// result in a fresh registry.
func loadRegistry(dir string) (*rule.Registry, []rule.Rule, error) {
	rules, err := compiler.LoadRuleDir(dir)
	if err != nil {
		return nil, nil, err
	}
	reg := rule.NewRegistry()
	if err := reg.Load(rules); err != nil {
		return nil, nil, err
	}
	return reg, rules, nil
}

// newLogger builds the command logger. Verbose mode enables debug
// output; otherwise only warnings and errors surface. Logs always go to
// stderr so stdout stays parseable.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
