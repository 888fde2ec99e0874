package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(text)},
		},
	}}
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter()
	var got []string
	r.RegisterHandler("quiz", func(_ context.Context, u tgbotapi.Update) error {
		got = append(got, u.Message.Command())
		return nil
	})
	boom := errors.New("boom")
	r.RegisterHandler("stats", func(context.Context, tgbotapi.Update) error { return boom })

	handled, err := r.Dispatch(context.Background(), commandUpdate("/quiz"))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"quiz"}, got)

	handled, err = r.Dispatch(context.Background(), commandUpdate("/stats"))
	assert.True(t, handled)
	assert.ErrorIs(t, err, boom)

	handled, err = r.Dispatch(context.Background(), commandUpdate("/unknown"))
	require.NoError(t, err)
	assert.False(t, handled)

	assert.Equal(t, []string{"quiz", "stats"}, r.Commands())
}

func TestRouter_IgnoresPlainText(t *testing.T) {
	r := NewRouter()
	r.RegisterHandler("quiz", func(context.Context, tgbotapi.Update) error {
		t.Fatal("plain text must not be routed")
		return nil
	})

	handled, err := r.Dispatch(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "quiz"}})
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = r.Dispatch(context.Background(), tgbotapi.Update{})
	require.NoError(t, err)
	assert.False(t, handled)
}
