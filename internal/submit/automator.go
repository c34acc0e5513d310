// Package submit executes prepared submission requests through a
// tiered browser-automation contract.
package submit

import (
	"context"
	"errors"
)

// ErrUnavailable signals that no working automation backend is present
// at runtime. Callers fold it into the simulated-result path; it is
// never surfaced as a failure.
var ErrUnavailable = errors.New("automation backend unavailable")

// Field describes one fillable control on the target form.
type Field struct {
	Name string
	ID   string
	Kind string
}

// Session is one opened page. Implementations are single-use; Close
// releases the underlying tab.
type Session interface {
	Text(ctx context.Context) (string, error)
	HasForm(ctx context.Context) (bool, error)
	Fields(ctx context.Context) ([]Field, error)
	Fill(ctx context.Context, field Field, value string) error
	HasSubmit(ctx context.Context) (bool, error)
	ClickSubmit(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close()
}

// Automator opens browser sessions. Implementations that cannot drive
// a browser return ErrUnavailable from Open; callers never branch on
// which backend is installed.
type Automator interface {
	Open(ctx context.Context, url string) (Session, error)
}

// NoopAutomator models an absent automation backend.
type NoopAutomator struct{}

// NewNoop creates a NoopAutomator.
func NewNoop() *NoopAutomator {
	return &NoopAutomator{}
}

// Open always reports the backend as unavailable.
func (NoopAutomator) Open(context.Context, string) (Session, error) {
	return nil, ErrUnavailable
}
