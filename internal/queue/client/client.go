package client

import (
	"context"
	"sync"

	"github.com/hibiken/asynq"
)

type ctxKey int

const (
	_ ctxKey = iota
	clientCtxKey
)

var (
	globalClient *asynq.Client
	globalMu     sync.RWMutex
)

// WithClient returns a context carrying its own Client. It takes priority
// over the global one for code running under that context.
func WithClient(ctx context.Context, client *asynq.Client) context.Context {
	return context.WithValue(ctx, clientCtxKey, client)
}

// GetClient returns the Client carried by ctx, falling back to the global
// one set with SetClient. Safe for concurrent use.
func GetClient(ctx context.Context) *asynq.Client {
	if c, ok := ctx.Value(clientCtxKey).(*asynq.Client); ok {
		return c
	}

	globalMu.RLock()
	defer globalMu.RUnlock()

	return globalClient
}

// SetClient replaces the global Client and returns a function that restores
// the previous value. Safe for concurrent use.
func SetClient(client *asynq.Client) func() {
	globalMu.Lock()
	prev := globalClient
	globalClient = client
	globalMu.Unlock()
	return func() { SetClient(prev) }
}
