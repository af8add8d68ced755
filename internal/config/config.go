// Package config loads scenario plan files. Plans are YAML documents
// validated against an embedded CUE schema before any scenario starts, so
// malformed plans fail fast with CONFIG_INVALID instead of mid-run.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/enactor/internal/chain"
	"github.com/roach88/enactor/internal/dispatch"
	"github.com/roach88/enactor/internal/gov"
	"github.com/roach88/enactor/internal/observer"
	"github.com/roach88/enactor/internal/pool"
	"github.com/roach88/enactor/internal/scenario"
)

//go:embed schema.cue
var schemaCUE string

// Plan is one validated scenario plan file.
type Plan struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Type string `yaml:"type,omitempty"`

	MassAbstain               bool `yaml:"mass_abstain,omitempty"`
	DisapproveAfterSettlement bool `yaml:"disapprove_after_settlement,omitempty"`

	Proposals      int    `yaml:"proposals,omitempty"`
	DeadlineEpochs uint64 `yaml:"deadline_epochs,omitempty"`

	Agents struct {
		SPOs      *int `yaml:"spos,omitempty"`
		Committee *int `yaml:"committee,omitempty"`
		DReps     *int `yaml:"dreps,omitempty"`
	} `yaml:"agents,omitempty"`

	Concurrency  int    `yaml:"concurrency,omitempty"`
	PollInterval string `yaml:"poll_interval,omitempty"`

	Node struct {
		SubmitURL string `yaml:"submit_url,omitempty"`
		QueryURL  string `yaml:"query_url,omitempty"`
		Timeout   string `yaml:"timeout,omitempty"`
	} `yaml:"node,omitempty"`
}

func invalid(message string, cause error) *scenario.Error {
	return &scenario.Error{
		Code:    scenario.ErrCodeConfigInvalid,
		Message: message,
		Err:     cause,
	}
}

// Load reads and validates one plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid(fmt.Sprintf("read plan %s: %v", path, err), err)
	}
	return Parse(path, data)
}

// Parse validates raw plan bytes. The name is used in error messages only.
func Parse(name string, data []byte) (*Plan, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalid(fmt.Sprintf("plan %s: invalid YAML: %v", name, err), err)
	}
	if err := validateSchema(name, raw); err != nil {
		return nil, err
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, invalid(fmt.Sprintf("plan %s: %v", name, err), err)
	}
	if err := p.check(name); err != nil {
		return nil, err
	}
	return &p, nil
}

// validateSchema unifies the plan document with the embedded #Plan schema.
func validateSchema(name string, raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile plan schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Plan"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Plan: %w", err)
	}

	unified := def.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return invalid(fmt.Sprintf("plan %s: schema violation: %v", name, err), err)
	}
	return nil
}

// check enforces the cross-field rules the schema cannot express.
func (p *Plan) check(name string) error {
	if _, err := gov.ParseActionKind(p.Kind); err != nil {
		return invalid(fmt.Sprintf("plan %s: %v", name, err), err)
	}
	if p.Type == "" && !p.MassAbstain {
		return invalid(fmt.Sprintf("plan %s: type is required unless mass_abstain is set", name), nil)
	}
	if p.Type != "" {
		if _, err := dispatch.ParseSplit(p.Type); err != nil {
			return invalid(fmt.Sprintf("plan %s: %v", name, err), err)
		}
	}
	for field, v := range map[string]string{"poll_interval": p.PollInterval, "node.timeout": p.Node.Timeout} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return invalid(fmt.Sprintf("plan %s: %s: %v", name, field, err), err)
		}
	}
	return nil
}

// LoadDir loads every .yaml/.yml plan in a directory, sorted by file name.
func LoadDir(dir string) ([]*Plan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, invalid(fmt.Sprintf("read plan dir %s: %v", dir, err), err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, invalid(fmt.Sprintf("no plan files in %s", dir), nil)
	}

	plans := make([]*Plan, 0, len(paths))
	for _, path := range paths {
		p, err := Load(path)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// Spec converts the plan to a runnable scenario spec.
func (p *Plan) Spec() scenario.Spec {
	return scenario.Spec{
		Name:                      p.Name,
		Kind:                      gov.ActionKind(p.Kind),
		Split:                     dispatch.Split(p.Type),
		Proposals:                 p.Proposals,
		HorizonEpochs:             p.DeadlineEpochs,
		MassAbstain:               p.MassAbstain,
		DisapproveAfterSettlement: p.DisapproveAfterSettlement,
	}
}

// PoolConfig returns the agent pool composition: the defaults with any
// per-role overrides applied.
func (p *Plan) PoolConfig() pool.Config {
	cfg := pool.DefaultConfig()
	if p.Agents.SPOs != nil {
		cfg.SPOs = *p.Agents.SPOs
	}
	if p.Agents.Committee != nil {
		cfg.Committee = *p.Agents.Committee
	}
	if p.Agents.DReps != nil {
		cfg.DReps = *p.Agents.DReps
	}
	return cfg
}

// RunnerConfig returns the scenario runner tuning for this plan.
func (p *Plan) RunnerConfig() scenario.Config {
	cfg := scenario.Config{
		Dispatch: dispatch.Config{MaxParallel: p.Concurrency},
	}
	if p.PollInterval != "" {
		d, _ := time.ParseDuration(p.PollInterval)
		cfg.Observer = observer.Config{PollInterval: d}
	}
	return cfg
}

// HTTPConfig returns the node client settings for this plan.
func (p *Plan) HTTPConfig() chain.HTTPConfig {
	cfg := chain.HTTPConfig{
		SubmitURL: p.Node.SubmitURL,
		QueryURL:  p.Node.QueryURL,
	}
	if p.Node.Timeout != "" {
		d, _ := time.ParseDuration(p.Node.Timeout)
		cfg.Timeout = d
	}
	return cfg
}
