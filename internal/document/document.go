// Package document defines the navigable-document capability the verifier
// drives. Implementations wrap a browser automation driver; the verifier only
// sees these interfaces.
package document

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an expected element does not appear in time.
	ErrNotFound = errors.New("document: element not found")
	// ErrTimeout is returned when a navigation or wait exceeds its bound.
	ErrTimeout = errors.New("document: timeout")
)

// Scope answers element queries. A page, an inline subtree and the content of
// an iframe all satisfy it, so callers never care which one they hold.
type Scope interface {
	// QueryAll returns the visible elements matching selector, in document order.
	// Handles are positional: they re-resolve on use, so they survive re-renders
	// but may point at a different node after navigation.
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// WaitVisible waits for the first element matching selector to become
	// visible. It fails with ErrNotFound on timeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (Element, error)
}

// Element is a handle to one node of the document.
type Element interface {
	Scope

	Click(ctx context.Context, timeout time.Duration) error
	Text(ctx context.Context) (string, error)
	// Attribute returns "" when the attribute is absent.
	Attribute(ctx context.Context, name string) (string, error)
	TagName(ctx context.Context) (string, error)
	Enabled(ctx context.Context) (bool, error)
	// Frame returns the content of an iframe element as a Scope.
	Frame(ctx context.Context) (Scope, error)
	Screenshot(path string) error
}

// Document is a live browsing context positioned at some URL.
type Document interface {
	Scope

	URL() string
	Goto(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	BodyText(ctx context.Context) (string, error)

	// ExpectNewContext runs action and waits up to timeout for it to open a new
	// browsing context. It returns nil, nil when the action settled without
	// one, and the action's own error if the action failed.
	ExpectNewContext(ctx context.Context, timeout time.Duration, action func() error) (Document, error)

	// Screenshot is best-effort; callers ignore its error beyond logging.
	Screenshot(path string) error
	Close() error
}

// First returns the first match of selector in scope, or ErrNotFound.
func First(ctx context.Context, scope Scope, selector string) (Element, error) {
	elems, err := scope.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, ErrNotFound
	}
	return elems[0], nil
}

// TextOf returns the trimmed text of the first match of selector, or "" when
// nothing matches.
func TextOf(ctx context.Context, scope Scope, selector string) (string, error) {
	el, err := First(ctx, scope, selector)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// WaitEnabled polls el until it reports enabled or timeout elapses.
func WaitEnabled(ctx context.Context, el Element, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		enabled, err := el.Enabled(ctx)
		if err == nil && enabled {
			return nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return err
			}
			return ErrTimeout
		case <-ticker.C:
		}
	}
}
