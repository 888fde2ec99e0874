package telegram

import (
	"context"
	"sort"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// HandlerFunc is a function that handles a Telegram update
type HandlerFunc func(ctx context.Context, update tgbotapi.Update) error

// Router routes command messages to registered handlers
type Router interface {
	// RegisterHandler registers a handler for a specific command
	RegisterHandler(command string, handler HandlerFunc)
	// Dispatch routes an update and reports whether a handler took it
	Dispatch(ctx context.Context, update tgbotapi.Update) (bool, error)
	// Commands lists the registered commands
	Commands() []string
}

// NewRouter creates a new router instance
func NewRouter() Router {
	return &commandRouter{
		handlers: make(map[string]HandlerFunc),
	}
}

type commandRouter struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func (r *commandRouter) RegisterHandler(command string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[command] = handler
}

func (r *commandRouter) Dispatch(ctx context.Context, update tgbotapi.Update) (bool, error) {
	if update.Message == nil {
		return false, nil
	}

	command := update.Message.Command()
	if command == "" {
		return false, nil
	}

	r.mu.RLock()
	handler, exists := r.handlers[command]
	r.mu.RUnlock()
	if !exists {
		return false, nil
	}

	return true, handler(ctx, update)
}

func (r *commandRouter) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for c := range r.handlers {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
