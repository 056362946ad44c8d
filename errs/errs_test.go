package errs

import (
	"testing"

	"github.com/containerd/errdefs"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"argument", Argument("bad %s", "input"), KindArgument},
		{"capacity", Capacity("topic table full"), KindCapacity},
		{"name duplicate", Name("topic %q already exists", "/a/b"), KindName},
		{"name invalid", InvalidName("name too long"), KindName},
		{"anonymous", Anonymous("no node-id"), KindAnonymous},
		{"transport", Transport(errdefs.ErrUnavailable, "publish failed"), KindTransport},
		{"unknown", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrdefsInterop(t *testing.T) {
	if !errdefs.IsInvalidArgument(Argument("x")) {
		t.Error("Argument should satisfy errdefs.IsInvalidArgument")
	}
	if !errdefs.IsResourceExhausted(Capacity("x")) {
		t.Error("Capacity should satisfy errdefs.IsResourceExhausted")
	}
	if !errdefs.IsAlreadyExists(Name("x")) {
		t.Error("Name should satisfy errdefs.IsAlreadyExists")
	}
	if !errdefs.IsFailedPrecondition(Anonymous("x")) {
		t.Error("Anonymous should satisfy errdefs.IsFailedPrecondition")
	}
	if !errdefs.IsUnavailable(Transport(errdefs.ErrUnavailable, "x")) {
		t.Error("Transport should satisfy errdefs.IsUnavailable")
	}
}
