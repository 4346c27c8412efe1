// Package emailtest provides an in-memory email.Sender for tests.
package emailtest

import (
	"context"
	"sync"

	"venuly/internal/email"
)

type Recorder struct {
	mu   sync.Mutex
	sent []email.Message
	Err  error
}

func (r *Recorder) Configured() bool { return true }

func (r *Recorder) Send(ctx context.Context, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Sent() []email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]email.Message(nil), r.sent...)
}
