package quiz

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-learning-bot/internal/domain/preferences"
)

func newTestGenerator() *Generator {
	return NewGenerator(rand.New(rand.NewPCG(1, 2)))
}

func TestGenerator_Next_AnswersAreConsistent(t *testing.T) {
	g := newTestGenerator()
	focuses := map[string][]string{
		CategoryAddition:       {"single_digit", "carrying", "three_digit", "unknown"},
		CategorySubtraction:    {"single_digit", "borrowing", "three_digit"},
		CategoryMultiplication: {"times_tables", "two_by_one", "two_by_two"},
		CategoryDivision:       {"exact", "remainders", "two_digit_divisor"},
		CategoryPercentages:    {"tens", "quarters", "any"},
	}

	for category, list := range focuses {
		for _, focus := range list {
			for d := 1; d <= 5; d++ {
				for i := 0; i < 50; i++ {
					p := g.Next(category, d, focus)
					require.Equal(t, category, p.Category())

					switch p.Op() {
					case OpAdd:
						assert.Equal(t, p.Left()+p.Right(), p.Answer())
					case OpSubtract:
						assert.Equal(t, p.Left()-p.Right(), p.Answer())
						assert.GreaterOrEqual(t, p.Answer(), 0)
					case OpMultiply:
						assert.Equal(t, p.Left()*p.Right(), p.Answer())
					case OpDivide:
						assert.Zero(t, p.Left()%p.Right(), p.Text())
						assert.Equal(t, p.Left()/p.Right(), p.Answer())
					case OpRemainder:
						assert.Equal(t, p.Left()%p.Right(), p.Answer())
					case OpPercent:
						assert.Zero(t, p.Left()*p.Right()%100, p.Text())
					}

					choices := p.Choices()
					assert.Len(t, choices, 4)
					assert.Contains(t, choices, p.Answer())
				}
			}
		}
	}
}

func TestGenerator_Next_FocusShapesProblems(t *testing.T) {
	g := newTestGenerator()

	for i := 0; i < 100; i++ {
		p := g.Next(CategoryAddition, 2, "carrying")
		assert.GreaterOrEqual(t, p.Left()%10+p.Right()%10, 10, p.Text())

		p = g.Next(CategorySubtraction, 3, "borrowing")
		assert.Less(t, p.Left()%10, p.Right()%10, p.Text())
	}

	p := g.Next("geometry", 9, "")
	assert.Equal(t, CategoryAddition, p.Category())
	assert.Equal(t, "single_digit", p.Focus())
}

func TestSession_AnswerFlow(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := preferences.Defaults().Merge(preferences.Partial{
		preferences.FieldQuestionCount: preferences.Int(2),
		preferences.FieldTimeLimit:     preferences.Int(10),
	}, start)
	s := NewSession(7, snap, start)
	g := newTestGenerator()

	_, err := s.Answer(1, start)
	assert.ErrorIs(t, err, ErrNoQuestion)

	p := s.Ask(g, start)
	attempt, err := s.Answer(p.Answer(), start.Add(3*time.Second))
	require.NoError(t, err)
	assert.True(t, attempt.Correct())
	assert.Equal(t, 3000, attempt.ResponseTimeMs())

	p = s.Ask(g, start.Add(4*time.Second))
	attempt, err = s.Answer(p.Answer(), start.Add(20*time.Second))
	require.NoError(t, err)
	assert.False(t, attempt.Correct())
	assert.True(t, attempt.TimedOut())

	assert.True(t, s.Done())
	assert.Equal(t, 1, s.Correct())
}

func TestSession_Apply(t *testing.T) {
	start := time.Now()
	s := NewSession(7, preferences.Defaults(), start)
	g := newTestGenerator()
	s.Ask(g, start)
	_, err := s.Answer(0, start)
	require.NoError(t, err)
	s.Ask(g, start)

	older := preferences.NewSnapshot(0, preferences.Defaults().Fields(), start)
	assert.False(t, s.Apply(older))

	shrunk := preferences.Defaults().Merge(preferences.Partial{
		preferences.FieldQuestionCount: preferences.Int(1),
		preferences.FieldTimeLimit:     preferences.Int(0),
	}, start)
	require.True(t, s.Apply(shrunk))

	assert.Equal(t, 2, s.Settings().QuestionCount, "asked questions stay counted")
	assert.Zero(t, s.Settings().TimeLimit)
	assert.Equal(t, uint64(1), s.Version())
}
