// Package sms delivers text messages through an SMS gateway.
package sms

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrMissingAPIKey is returned when no gateway key is configured at send time.
var ErrMissingAPIKey = errors.New("sms api key is not configured")

// Dispatcher sends one message to one phone number. from is the sender
// label shown on the handset.
type Dispatcher interface {
	Send(ctx context.Context, to, from, body string) error
}

// LogDispatcher writes messages to the log instead of sending them. Used
// for local development.
type LogDispatcher struct{}

func (LogDispatcher) Send(ctx context.Context, to, from, body string) error {
	log.Info().
		Str("to", to).
		Str("from", from).
		Int("length", len(body)).
		Msg("SMS (log provider)")
	log.Debug().Str("to", to).Str("body", body).Msg("SMS body")
	return nil
}

// Message is a message captured by Recorder.
type Message struct {
	To   string
	From string
	Body string
}

// Recorder keeps every message in memory and can be told to fail.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// FailWith makes subsequent sends return err; nil restores success.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Send(ctx context.Context, to, from, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, Message{To: to, From: from, Body: body})
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
