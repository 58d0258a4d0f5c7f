package resolver

import (
	"context"
	"errors"
)

// Step is one typed extraction step: it consumes the previous step's output
// and yields the next input, or an error that stops the chain.
type Step[In, Out any] func(ctx context.Context, in In) (Out, error)

// Stage names fn so its failure surfaces as *StageError{Stage: name}.
func Stage[In, Out any](name string, fn func(context.Context, In) (Out, error)) Step[In, Out] {
	return func(ctx context.Context, in In) (Out, error) {
		out, err := fn(ctx, in)
		if err != nil {
			var zero Out
			var se *StageError
			if errors.As(err, &se) {
				return zero, err
			}
			return zero, &StageError{Stage: name, Err: err}
		}
		return out, nil
	}
}

// Then runs first and feeds its output to next. next is never called when first fails.
func Then[A, B, C any](first Step[A, B], next Step[B, C]) Step[A, C] {
	return func(ctx context.Context, a A) (C, error) {
		b, err := first(ctx, a)
		if err != nil {
			var zero C
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			var zero C
			return zero, err
		}
		return next(ctx, b)
	}
}
