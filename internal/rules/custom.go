package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-access/kestrel/internal/domain"
)

// CustomRules holds operator-defined CEL rules evaluated alongside the
// built-in sequence rules. Expressions see the replay context of one event
// and must return a bool.
type CustomRules struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewCustomRules creates an empty custom rule set.
func NewCustomRules() (*CustomRules, error) {
	// CEL environment exposing the replay context
	env, err := cel.NewEnv(
		cel.Variable("credential_id", cel.StringType),
		cel.Variable("reader_kind", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("access_known", cel.BoolType),
		cel.Variable("access_permitted", cel.BoolType),
		cel.Variable("has_prev", cel.BoolType),
		cel.Variable("prev_reader_kind", cel.StringType),
		cel.Variable("minutes_since_prev", cel.DoubleType),
		cel.Variable("has_entry_profile", cel.BoolType),
		cel.Variable("mean_entry_hour", cel.DoubleType),
		cel.Variable("has_exit_profile", cel.BoolType),
		cel.Variable("mean_exit_hour", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CustomRules{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded set.
func (c *CustomRules) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := c.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule.
func (c *CustomRules) LoadRule(cfg *domain.RuleConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	compiled, err := c.compileRule(cfg)
	if err != nil {
		return err
	}

	c.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules.
func (c *CustomRules) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := c.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the repository.
func (c *CustomRules) ReloadRules(configs []*domain.RuleConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := c.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	c.compiledRules = newRules
	return nil
}

// Count returns the number of loaded rules.
func (c *CustomRules) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.compiledRules)
}

// Loaded returns the currently loaded rule configurations.
func (c *CustomRules) Loaded() []*domain.RuleConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configs := make([]*domain.RuleConfig, 0, len(c.compiledRules))
	for _, compiled := range c.compiledRules {
		configs = append(configs, compiled.Config)
	}
	return configs
}

// Evaluate runs every loaded rule against one event's replay context and
// returns the summed points and triggered reasons. Evaluation errors mute
// the offending rule for that event; a broken expression must not sink the
// whole replay.
func (c *CustomRules) Evaluate(ev, last *domain.AccessEvent, profile domain.CredentialProfile) (int, []string) {
	c.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(c.compiledRules))
	for _, rule := range c.compiledRules {
		loaded = append(loaded, rule)
	}
	c.mu.RUnlock()

	if len(loaded) == 0 {
		return 0, nil
	}

	activation := buildActivation(ev, last, profile)

	score := 0
	var reasons []string
	for _, rule := range loaded {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			slog.Warn("custom rule evaluation failed",
				"rule_id", rule.Config.ID,
				"credential_id", ev.CredentialID,
				"error", err,
			)
			continue
		}
		if triggered, ok := out.(types.Bool); ok && bool(triggered) {
			score += rule.Config.Points
			reasons = append(reasons, rule.Config.Reason)
		}
	}
	return score, reasons
}

func buildActivation(ev, last *domain.AccessEvent, profile domain.CredentialProfile) map[string]any {
	activation := map[string]any{
		"credential_id":      ev.CredentialID,
		"reader_kind":        string(ev.ReaderKind),
		"hour":               int64(ev.Hour()),
		"access_known":       ev.AccessPermitted != nil,
		"access_permitted":   ev.AccessPermitted == nil || *ev.AccessPermitted,
		"has_prev":           last != nil,
		"prev_reader_kind":   "",
		"minutes_since_prev": 0.0,
		"has_entry_profile":  profile.MeanEntryHour != nil,
		"mean_entry_hour":    0.0,
		"has_exit_profile":   profile.MeanExitHour != nil,
		"mean_exit_hour":     0.0,
	}

	if last != nil {
		activation["prev_reader_kind"] = string(last.ReaderKind)
		activation["minutes_since_prev"] = domain.MinutesBetween(last, ev)
	}
	if profile.MeanEntryHour != nil {
		activation["mean_entry_hour"] = *profile.MeanEntryHour
	}
	if profile.MeanExitHour != nil {
		activation["mean_exit_hour"] = *profile.MeanExitHour
	}
	return activation
}

func (c *CustomRules) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := c.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
