package mq

import (
	"context"
	"sync"
)

// Token tracks the outcome of an asynchronous Publish, Subscribe, or
// Unsubscribe call. Wait blocks for completion; Done/Error let a caller
// select on several tokens, or a whole connection's worth, at once.
//
//	token := client.Publish("topic", []byte("data"), mq.WithQoS(1))
//	select {
//	case <-token.Done():
//	    if err := token.Error(); err != nil {
//	        log.Printf("publish failed: %v", err)
//	    }
//	case <-time.After(5 * time.Second):
//	    log.Println("timeout")
//	}
type Token interface {
	// Wait blocks until the operation completes or ctx is cancelled.
	Wait(ctx context.Context) error

	// Done closes when the operation completes.
	Done() <-chan struct{}

	// Error returns the completion error, or nil on success. Only
	// meaningful after Done has closed.
	Error() error
}

// token is the only implementation of Token; completion is a one-shot
// transition guarded by sync.Once so a racing second complete() is silently
// dropped instead of panicking on a closed channel.
type token struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newToken() *token {
	return &token{done: make(chan struct{})}
}

func (t *token) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *token) Done() <-chan struct{} {
	return t.done
}

func (t *token) Error() error {
	return t.err
}

// complete resolves the token with err. Only the first call has any
// effect; every call after that, from a retry path or a racing ack, is a
// no-op.
func (t *token) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
