package coordinator

import "errors"

// FailureKind tags how a fetch error should be handled.
type FailureKind int

const (
	// FailureNone means there was no error.
	FailureNone FailureKind = iota

	// FailureTransient means retry on the next tick and keep cached data.
	FailureTransient

	// FailureAuth means the credentials must be reconfigured.
	FailureAuth

	// FailureFatal means the error is unknown and propagates unmodified.
	FailureFatal
)

// String returns the lowercase name of the kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureAuth:
		return "auth"
	case FailureFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classifier maps a fetch error to a FailureKind.
// Implementations must be pure.
type Classifier interface {
	Classify(err error) FailureKind
}

// ClassifierTable classifies errors by matching them against sentinel lists
// with errors.Is. Auth matches take precedence over Transient matches.
// Anything that matches neither list is fatal.
type ClassifierTable struct {
	Transient []error
	Auth      []error
}

// Classify implements Classifier.
func (t ClassifierTable) Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	for _, target := range t.Auth {
		if errors.Is(err, target) {
			return FailureAuth
		}
	}
	for _, target := range t.Transient {
		if errors.Is(err, target) {
			return FailureTransient
		}
	}
	return FailureFatal
}
