package ridgedb

import (
	"fmt"
	"testing"

	"github.com/aalhour/ridgedb/internal/coalescer"
	"github.com/aalhour/ridgedb/internal/manifest"
	"github.com/aalhour/ridgedb/internal/table"
)

func TestKindClassifiesFacadeSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{ErrEmptyKey, KindValidation},
		{ErrEmptyValue, KindValidation},
		{ErrValidation, KindValidation},
		{ErrClosed, KindState},
		{coalescer.ErrClosed, KindChannelClosed},
		{table.ErrChecksumMismatch, KindCorruption},
		{manifest.ErrDuplicateID, KindState},
		{manifest.ErrUnknownID, KindState},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestKindClassifiesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("ridgedb: get: %w", ErrClosed)
	if got := Kind(wrapped); got != KindState {
		t.Fatalf("Kind(wrapped ErrClosed) = %v, want KindState", got)
	}
}

func TestKindUnknownForNil(t *testing.T) {
	if got := Kind(nil); got != KindUnknown {
		t.Fatalf("Kind(nil) = %v, want KindUnknown", got)
	}
}

func TestKindDefaultsToIOForUnrecognizedError(t *testing.T) {
	if got := Kind(fmt.Errorf("some opaque os error")); got != KindIO {
		t.Fatalf("Kind(opaque) = %v, want KindIO", got)
	}
}
