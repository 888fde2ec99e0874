package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"math-learning-bot/internal/domain/preferences"
)

func TestCallbackData_RoundTrip(t *testing.T) {
	data := CallbackData(ActionSet, "question_count", "15", "3")
	assert.Equal(t, "set:question_count:15:3", data)

	action, args := ParseCallbackData(data)
	assert.Equal(t, ActionSet, action)
	assert.Equal(t, []string{"question_count", "15", "3"}, args)

	action, args = ParseCallbackData(ActionNoop)
	assert.Equal(t, ActionNoop, action)
	assert.Empty(t, args)
}

func TestNextTimeLimit(t *testing.T) {
	assert.Equal(t, 15, NextTimeLimit(0))
	assert.Equal(t, 60, NextTimeLimit(30))
	assert.Equal(t, 0, NextTimeLimit(120))
	assert.Equal(t, 0, NextTimeLimit(45))
}

func TestFormatChanges(t *testing.T) {
	got := FormatChanges(preferences.Partial{
		preferences.FieldTimeLimit:     preferences.Int(0),
		preferences.FieldPracticeFocus: preferences.String("two_by_one"),
		preferences.FieldHintsEnabled:  preferences.Bool(false),
	})

	assert.Equal(t,
		"• Hints: **off**\n"+
			"• Practice focus: **two by one**\n"+
			"• Time limit: **no limit**\n",
		got)
}
