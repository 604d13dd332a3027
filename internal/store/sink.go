package store

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/ideaminer/internal/types"
)

// Sink persists finished records.
type Sink interface {
	SaveIdeas(ctx context.Context, records []types.IdeaRecord) error
}

// MirrorError reports mirrors that failed after the primary sink already
// holds the records.
type MirrorError struct {
	Err error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("mirror sink: %v", e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }

// MultiSink saves to Primary first. Mirrors are written concurrently only once
// the primary succeeded, so a primary failure leaves every backend untouched.
// Mirror failures come back as *MirrorError.
type MultiSink struct {
	Primary Sink
	Mirrors []Sink
}

func (m MultiSink) SaveIdeas(ctx context.Context, records []types.IdeaRecord) error {
	if len(records) == 0 {
		return nil
	}
	if m.Primary != nil {
		if err := m.Primary.SaveIdeas(ctx, records); err != nil {
			return err
		}
	}

	errs := make([]error, len(m.Mirrors))
	var g errgroup.Group
	for i, s := range m.Mirrors {
		g.Go(func() error {
			errs[i] = s.SaveIdeas(ctx, records)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return &MirrorError{Err: err}
	}
	return nil
}
