package attendance

import (
	"context"
	"strings"
)

// Verifier compares a live capture against the template on file.
type Verifier interface {
	Verify(ctx context.Context, template, capture string) (bool, error)
}

// AcceptAll treats any non-blank capture as a match.
type AcceptAll struct{}

func (AcceptAll) Verify(_ context.Context, _, capture string) (bool, error) {
	return strings.TrimSpace(capture) != "", nil
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, template, capture string) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context, template, capture string) (bool, error) {
	return f(ctx, template, capture)
}
