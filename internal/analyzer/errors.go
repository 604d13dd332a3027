package analyzer

import (
	"errors"
	"fmt"
)

// FailureKind distinguishes why a model call produced no usable object. It is
// logged but never changes how a caller reacts.
type FailureKind int

const (
	FailureTransport FailureKind = iota + 1
	FailureEmpty
	FailureMalformed
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureEmpty:
		return "empty"
	case FailureMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ModelFailure is the only error CompleteJSON returns.
type ModelFailure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (e *ModelFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model %s failure: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("model %s failure: %s", e.Kind, e.Detail)
}

func (e *ModelFailure) Unwrap() error {
	return e.Err
}

func newFailure(kind FailureKind, detail string, err error) *ModelFailure {
	return &ModelFailure{Kind: kind, Detail: detail, Err: err}
}

// FailureKindOf returns the kind of a ModelFailure in err's chain, or 0.
func FailureKindOf(err error) FailureKind {
	var mf *ModelFailure
	if errors.As(err, &mf) {
		return mf.Kind
	}
	return 0
}
