package coordinator

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifierTable_Classify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: FailureNone},
		{name: "transient", err: errConn, want: FailureTransient},
		{name: "wrapped transient", err: fmt.Errorf("hosts: %w", errConn), want: FailureTransient},
		{name: "auth", err: errAuth, want: FailureAuth},
		{name: "wrapped auth", err: fmt.Errorf("call GetInfo: %w", errAuth), want: FailureAuth},
		{name: "unknown", err: errBroken, want: FailureFatal},
		{name: "auth wins over transient", err: errors.Join(errConn, errAuth), want: FailureAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testTable.Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifierTable_EmptyIsFatal(t *testing.T) {
	if got := (ClassifierTable{}).Classify(errConn); got != FailureFatal {
		t.Errorf("Classify() = %v, want fatal", got)
	}
}

func TestFailureKind_String(t *testing.T) {
	tests := map[FailureKind]string{
		FailureNone:      "none",
		FailureTransient: "transient",
		FailureAuth:      "auth",
		FailureFatal:     "fatal",
		FailureKind(99):  "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(kind), got, want)
		}
	}
}
