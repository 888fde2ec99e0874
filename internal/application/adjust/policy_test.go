package adjust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-learning-bot/internal/config"
	"math-learning-bot/internal/domain/preferences"
)

func snapshotWith(fields preferences.Partial) preferences.Snapshot {
	return preferences.Defaults().Merge(fields, time.Now())
}

func TestPolicy_Propose_RotatesFocusAfterMisses(t *testing.T) {
	p := DefaultPolicy()

	_, ok, err := p.Propose(preferences.Defaults(), Signal{IncorrectStreak: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	proposal, ok, err := p.Propose(preferences.Defaults(), Signal{IncorrectStreak: 3})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rotate-focus-after-misses", proposal.Rule)
	assert.Equal(t, preferences.Partial{
		preferences.FieldPracticeFocus: preferences.String("carrying"),
	}, proposal.Partial)
}

func TestPolicy_Propose_WrapsAndRestartsRotation(t *testing.T) {
	p := DefaultPolicy()
	sig := Signal{IncorrectStreak: 5}

	last := snapshotWith(preferences.Partial{preferences.FieldPracticeFocus: preferences.String("three_digit")})
	proposal, ok, err := p.Propose(last, sig)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "single_digit", proposal.Partial[preferences.FieldPracticeFocus].AsString())

	// focus from another category restarts at the first step
	switched := snapshotWith(preferences.Partial{preferences.FieldCategory: preferences.String("division")})
	proposal, ok, err = p.Propose(switched, sig)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "exact", proposal.Partial[preferences.FieldPracticeFocus].AsString())
}

func TestPolicy_Propose_UnknownCategoryHasNoFocus(t *testing.T) {
	p := DefaultPolicy()
	snap := snapshotWith(preferences.Partial{preferences.FieldCategory: preferences.String("geometry")})

	_, ok, err := p.Propose(snap, Signal{IncorrectStreak: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPolicy_Propose_FirstMatchingRuleWins(t *testing.T) {
	pf := config.DefaultPolicy()
	pf.Rules = []config.RuleConfig{
		{Name: "hints-off-when-fluent", When: "correct_streak >= 5 && difficulty >= 1", Field: "hints_enabled"},
		{Name: "focus", When: "answered > 0", Field: "practice_focus"},
	}
	p, err := NewPolicy(pf)
	require.NoError(t, err)

	proposal, ok, err := p.Propose(preferences.Defaults(), Signal{Correct: true, CorrectStreak: 5, Answered: 5})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hints-off-when-fluent", proposal.Rule)
	assert.Equal(t, preferences.Bool(false), proposal.Partial[preferences.FieldHintsEnabled])

	proposal, ok, err = p.Propose(preferences.Defaults(), Signal{Answered: 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "focus", proposal.Rule)
}

func TestNewPolicy_Rejects(t *testing.T) {
	tests := []struct {
		name string
		edit func(*config.PolicyFile)
	}{
		{"protected target", func(pf *config.PolicyFile) {
			pf.Rules = []config.RuleConfig{{Name: "x", When: "true", Field: "category", Rotation: []string{"addition"}}}
		}},
		{"rotatable made protected", func(pf *config.PolicyFile) {
			pf.Protected = map[string]bool{"practice_focus": true}
		}},
		{"unknown field", func(pf *config.PolicyFile) {
			pf.Rotatable = append(pf.Rotatable, "colour")
		}},
		{"bad expression", func(pf *config.PolicyFile) {
			pf.Rules = []config.RuleConfig{{Name: "x", When: "incorrect_streak >=", Field: "practice_focus"}}
		}},
		{"non boolean expression", func(pf *config.PolicyFile) {
			pf.Rules = []config.RuleConfig{{Name: "x", When: "answered + 1", Field: "practice_focus"}}
		}},
		{"empty condition", func(pf *config.PolicyFile) {
			pf.Rules = []config.RuleConfig{{Name: "x", Field: "practice_focus"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pf := config.DefaultPolicy()
			tt.edit(&pf)
			_, err := NewPolicy(pf)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestNewPolicy_ProtectionOverrides(t *testing.T) {
	pf := config.DefaultPolicy()
	pf.Protected = map[string]bool{"large_text": false}

	p, err := NewPolicy(pf)
	require.NoError(t, err)
	assert.False(t, p.IsProtected(preferences.FieldLargeText))
	assert.True(t, p.IsProtected(preferences.FieldCategory))
	assert.False(t, p.IsProtected(preferences.FieldPracticeFocus))
}

func TestLive_Swap(t *testing.T) {
	live := NewLive(DefaultPolicy())
	assert.True(t, live.IsProtected(preferences.FieldLargeText))

	pf := config.DefaultPolicy()
	pf.Protected = map[string]bool{"large_text": false}
	next, err := NewPolicy(pf)
	require.NoError(t, err)

	prev := live.Swap(next)
	assert.NotSame(t, next, prev)
	assert.False(t, live.IsProtected(preferences.FieldLargeText))
	assert.Equal(t, []string{"single_digit", "carrying", "three_digit"}, live.Load().Focus("addition"))
}
