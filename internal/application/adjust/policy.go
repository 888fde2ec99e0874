// Package adjust proposes automatic changes to unprotected preference fields
// from quiz performance.
package adjust

import (
	"errors"
	"fmt"
	"sync/atomic"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"math-learning-bot/internal/config"
	"math-learning-bot/internal/domain/preferences"
)

// ErrInvalidRule is returned by NewPolicy for rules it cannot accept.
var ErrInvalidRule = errors.New("invalid adjustment rule")

// Signal summarizes the answer that triggered an evaluation.
type Signal struct {
	Correct         bool
	IncorrectStreak int
	CorrectStreak   int
	Answered        int
}

// Proposal is a partial write produced by one rule.
type Proposal struct {
	Rule    string
	Partial preferences.Partial
}

type rule struct {
	name     string
	when     string
	program  *exprvm.Program
	field    preferences.Field
	rotation []preferences.Value
}

// Policy evaluates adjustment rules in order. It also carries the protected
// field table the store consults, so a reload swaps both together.
type Policy struct {
	rules     []rule
	protected preferences.ProtectedFields
	rotatable map[preferences.Field]bool
	focus     map[string][]string
}

// NewPolicy compiles the rules of pf. Rules may only target rotatable fields
// that the resulting protection table leaves unprotected.
func NewPolicy(pf config.PolicyFile) (*Policy, error) {
	p := &Policy{
		protected: preferences.DefaultProtectedFields(),
		rotatable: make(map[preferences.Field]bool),
		focus:     make(map[string][]string, len(pf.Focus)),
	}

	for name, protected := range pf.Protected {
		field := preferences.Field(name)
		if _, ok := field.Kind(); !ok {
			return nil, fmt.Errorf("%w: unknown protected field %q", ErrInvalidRule, name)
		}
		p.protected[field] = protected
	}
	for _, name := range pf.Rotatable {
		field := preferences.Field(name)
		if _, ok := field.Kind(); !ok {
			return nil, fmt.Errorf("%w: unknown rotatable field %q", ErrInvalidRule, name)
		}
		if p.protected.IsProtected(field) {
			return nil, fmt.Errorf("%w: field %q is both rotatable and protected", ErrInvalidRule, name)
		}
		p.rotatable[field] = true
	}
	for category, steps := range pf.Focus {
		p.focus[category] = append([]string(nil), steps...)
	}

	for i, rc := range pf.Rules {
		r, err := p.compile(rc)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rc.Name, err)
		}
		p.rules = append(p.rules, r)
	}
	return p, nil
}

// DefaultPolicy compiles config.DefaultPolicy.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(config.DefaultPolicy())
	if err != nil {
		panic(fmt.Sprintf("default adjustment policy is invalid: %v", err))
	}
	return p
}

func (p *Policy) compile(rc config.RuleConfig) (rule, error) {
	field := preferences.Field(rc.Field)
	if !p.rotatable[field] {
		return rule{}, fmt.Errorf("%w: field %q is not rotatable", ErrInvalidRule, rc.Field)
	}
	if rc.When == "" {
		return rule{}, fmt.Errorf("%w: empty condition", ErrInvalidRule)
	}

	program, err := exprlang.Compile(rc.When,
		exprlang.Env(environment(preferences.Defaults(), Signal{})),
		exprlang.AsBool())
	if err != nil {
		return rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	r := rule{name: rc.Name, when: rc.When, program: program, field: field}
	for _, text := range rc.Rotation {
		v, err := preferences.ParseValue(field, text)
		if err != nil {
			return rule{}, fmt.Errorf("%w: rotation value %q: %v", ErrInvalidRule, text, err)
		}
		r.rotation = append(r.rotation, v)
	}
	if len(r.rotation) == 0 && field != preferences.FieldPracticeFocus {
		if kind, _ := field.Kind(); kind == preferences.KindBool {
			r.rotation = []preferences.Value{preferences.Bool(true), preferences.Bool(false)}
		} else {
			return rule{}, fmt.Errorf("%w: field %q needs a rotation", ErrInvalidRule, rc.Field)
		}
	}
	if r.name == "" {
		r.name = rc.When
	}
	return r, nil
}

func environment(current preferences.Snapshot, sig Signal) map[string]any {
	return map[string]any{
		"category":         current.Category(),
		"difficulty":       current.Difficulty(),
		"focus":            current.PracticeFocus(),
		"correct":          sig.Correct,
		"incorrect_streak": sig.IncorrectStreak,
		"correct_streak":   sig.CorrectStreak,
		"answered":         sig.Answered,
	}
}

// IsProtected implements preferences.ProtectionPolicy.
func (p *Policy) IsProtected(field preferences.Field) bool {
	return p.protected.IsProtected(field)
}

// Focus returns the focus rotation configured for category.
func (p *Policy) Focus(category string) []string {
	return append([]string(nil), p.focus[category]...)
}

// Propose evaluates the rules against current and sig. The first rule whose
// condition holds and whose rotation moves the field wins.
func (p *Policy) Propose(current preferences.Snapshot, sig Signal) (Proposal, bool, error) {
	env := environment(current, sig)
	for _, r := range p.rules {
		out, err := exprlang.Run(r.program, env)
		if err != nil {
			return Proposal{}, false, fmt.Errorf("failed to evaluate rule %s: %w", r.name, err)
		}
		if hit, _ := out.(bool); !hit {
			continue
		}

		next, ok := p.next(r, current)
		if !ok {
			continue
		}
		return Proposal{
			Rule:    r.name,
			Partial: preferences.Partial{r.field: next},
		}, true, nil
	}
	return Proposal{}, false, nil
}

// next returns the value after the current one in the rule's rotation,
// wrapping around. An unknown current value restarts the rotation.
func (p *Policy) next(r rule, current preferences.Snapshot) (preferences.Value, bool) {
	rotation := r.rotation
	if len(rotation) == 0 {
		for _, step := range p.focus[current.Category()] {
			rotation = append(rotation, preferences.String(step))
		}
	}
	if len(rotation) == 0 {
		return preferences.Value{}, false
	}

	value, _ := current.Get(r.field)
	next := rotation[0]
	for i, v := range rotation {
		if v.Equal(value) {
			next = rotation[(i+1)%len(rotation)]
			break
		}
	}
	if next.Equal(value) {
		return preferences.Value{}, false
	}
	return next, true
}

// Live holds the active Policy and lets a reload replace it atomically.
type Live struct {
	policy atomic.Pointer[Policy]
}

// NewLive starts with initial.
func NewLive(initial *Policy) *Live {
	l := &Live{}
	l.policy.Store(initial)
	return l
}

// Load returns the active policy
func (l *Live) Load() *Policy { return l.policy.Load() }

// Swap installs p and returns the previous policy.
func (l *Live) Swap(p *Policy) *Policy { return l.policy.Swap(p) }

// IsProtected implements preferences.ProtectionPolicy against the active policy.
func (l *Live) IsProtected(field preferences.Field) bool {
	return l.Load().IsProtected(field)
}

// Propose evaluates the active policy.
func (l *Live) Propose(current preferences.Snapshot, sig Signal) (Proposal, bool, error) {
	return l.Load().Propose(current, sig)
}
