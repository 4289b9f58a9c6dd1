package evaluate

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

//go:embed script.js
var invokeScript string

const readyExpression = `typeof window.openA11y?.evaluate === "function"`

// Library ruleset arguments with special meaning.
const (
	RulesetList      = "LIST"
	RulesetFirstStep = "FIRSTSTEP"
	DefaultRuleset   = "WCAG21"
	DefaultLevel     = "AA"
)

var (
	// ErrCapabilityTimeout reports that the evaluation library never became
	// callable.
	ErrCapabilityTimeout = errors.New("evaluation capability not ready")
	// ErrEvaluationFailed reports an in-page exception or an empty result.
	ErrEvaluationFailed = errors.New("evaluation failed")
)

// Mode selects which library entry point an evaluation uses.
type Mode int

// Evaluation modes.
const (
	ModeRuleset Mode = iota
	ModeRuleList
	ModeFirstStep
)

func (m Mode) String() string {
	switch m {
	case ModeRuleList:
		return "rule_list"
	case ModeFirstStep:
		return "first_step"
	default:
		return "ruleset"
	}
}

// Request holds the evaluation parameters handed to the library.
type Request struct {
	Ruleset  string
	Level    string
	Scope    string
	RuleList []string
}

// Mode dispatches on which parameters are set. An explicit rule list wins
// over everything else.
func (r Request) Mode() Mode {
	switch {
	case len(r.RuleList) > 0:
		return ModeRuleList
	case strings.EqualFold(r.Ruleset, RulesetFirstStep):
		return ModeFirstStep
	case r.Ruleset == "" && r.Level == "":
		return ModeFirstStep
	default:
		return ModeRuleset
	}
}

// arguments returns the positional arguments passed to openA11y.evaluate.
func (r Request) arguments() []any {
	ruleList := r.RuleList
	if ruleList == nil {
		ruleList = []string{}
	}
	switch r.Mode() {
	case ModeRuleList:
		return []any{RulesetList, "", r.Scope, ruleList}
	case ModeFirstStep:
		return []any{RulesetFirstStep, "", r.Scope, ruleList}
	}
	ruleset := r.Ruleset
	if ruleset == "" {
		ruleset = DefaultRuleset
	}
	level := r.Level
	if level == "" {
		level = DefaultLevel
	}
	return []any{ruleset, level, r.Scope, ruleList}
}

// Expression renders the in-page call for r.
func (r Request) Expression() (string, error) {
	args := r.arguments()
	encoded := make([]string, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("encode evaluation argument %d: %w", i, err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(%s)(%s)", strings.TrimSpace(invokeScript), strings.Join(encoded, ",")), nil
}

// Config controls evaluation timing and parameters.
type Config struct {
	Request           Request
	CapabilityTimeout time.Duration
	PollInterval      time.Duration
	SettleDelay       time.Duration
	MaxUnwrapLayers   int
}

// Invoker implements crawler.Evaluator against a page runtime.
type Invoker struct {
	cfg    Config
	logger *zap.Logger
}

var _ crawler.Evaluator = (*Invoker)(nil)

// New builds an Invoker, filling zero durations with defaults.
func New(cfg Config, logger *zap.Logger) *Invoker {
	if cfg.CapabilityTimeout <= 0 {
		cfg.CapabilityTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.MaxUnwrapLayers <= 0 {
		cfg.MaxUnwrapLayers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{cfg: cfg, logger: logger}
}

// WaitReady polls the page until the evaluation library is callable or the
// capability timeout elapses. Evaluation errors while polling are treated as
// "not ready yet".
func (i *Invoker) WaitReady(ctx context.Context, rt crawler.Runtime) error {
	waitCtx, cancel := context.WithTimeout(ctx, i.cfg.CapabilityTimeout)
	defer cancel()

	ticker := time.NewTicker(i.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		var ready bool
		err := rt.Evaluate(waitCtx, readyExpression, &ready)
		if err == nil && ready {
			i.logger.Debug("evaluation capability ready", zap.Int("attempts", attempt))
			return nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return fmt.Errorf("wait for capability: %w", ctx.Err())
			}
			return fmt.Errorf("%w after %s", ErrCapabilityTimeout, i.cfg.CapabilityTimeout)
		case <-ticker.C:
		}
	}
}

// Invoke waits out the settle delay, runs the audit, and returns the report
// as JSON text with any string encoding peeled off.
func (i *Invoker) Invoke(ctx context.Context, rt crawler.Runtime) (string, error) {
	if err := sleep(ctx, i.cfg.SettleDelay); err != nil {
		return "", fmt.Errorf("settle before evaluation: %w", err)
	}

	expr, err := i.cfg.Request.Expression()
	if err != nil {
		return "", err
	}

	start := time.Now()
	var raw string
	if err := rt.Evaluate(ctx, expr, &raw); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("evaluate page: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", ErrEvaluationFailed, err)
	}
	i.logger.Debug("evaluation returned",
		zap.Stringer("mode", i.cfg.Request.Mode()),
		zap.Int("bytes", len(raw)),
		zap.Duration("duration", time.Since(start)),
	)
	return Unwrap(raw, i.cfg.MaxUnwrapLayers)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
