package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Attempt produces the raw output of one generation attempt.
type Attempt func(ctx context.Context) (string, error)

// Outcome is the accepted output of a TwoAttempt run.
type Outcome struct {
	Raw string
	// Attempt is 1 for the primary attempt and 2 for the simplified one.
	Attempt int
}

// TwoAttempt runs a primary attempt and, when it fails or its output is rejected,
// one simplified attempt. There is no third attempt.
type TwoAttempt struct {
	Primary    Attempt
	Simplified Attempt
	// Timeout bounds each attempt separately when positive.
	Timeout time.Duration
	// Accept rejects unusable raw output; nil accepts everything.
	Accept func(raw string) error
}

// Run executes the policy. It returns the first accepted output or the joined
// errors of both attempts. ErrProviderUnconfigured is returned immediately.
func (p TwoAttempt) Run(ctx context.Context) (Outcome, error) {
	if p.Primary == nil {
		return Outcome{}, errors.New("two-attempt policy requires a primary attempt")
	}

	raw, firstErr := p.try(ctx, p.Primary)
	if firstErr == nil {
		return Outcome{Raw: raw, Attempt: 1}, nil
	}
	if errors.Is(firstErr, ErrProviderUnconfigured) || ctx.Err() != nil || p.Simplified == nil {
		return Outcome{}, firstErr
	}

	raw, secondErr := p.try(ctx, p.Simplified)
	if secondErr == nil {
		return Outcome{Raw: raw, Attempt: 2}, nil
	}
	return Outcome{}, errors.Join(
		fmt.Errorf("primary attempt: %w", firstErr),
		fmt.Errorf("simplified attempt: %w", secondErr),
	)
}

func (p TwoAttempt) try(ctx context.Context, attempt Attempt) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	raw, err := attempt(ctx)
	if err != nil {
		return "", err
	}
	if p.Accept != nil {
		if err := p.Accept(raw); err != nil {
			return "", err
		}
	}
	return raw, nil
}
