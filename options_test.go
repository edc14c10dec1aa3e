package ridgedb

import (
	"errors"
	"testing"

	"github.com/aalhour/ridgedb/internal/compression"
)

func TestDefaultOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("DefaultOptions() failed validation: %v", err)
	}
}

func TestValidateRejectsBadOptions(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Options)
	}{
		{"zero block size", func(o *Options) { o.BlockSize = 0 }},
		{"zero memtable size", func(o *Options) { o.MemtableSize = 0 }},
		{"too few levels", func(o *Options) { o.NumLevels = 1 }},
		{"zero max memtable num", func(o *Options) { o.MaxMemtableNum = 0 }},
		{"zero min memtable to merge", func(o *Options) { o.MinMemtableToMerge = 0 }},
		{"zero compactor num", func(o *Options) { o.CompactorNum = 0 }},
		{"zero subcompactor num", func(o *Options) { o.SubcompactorNum = 0 }},
		{"multiplier too small", func(o *Options) { o.MaxBytesForLevelMultiplier = 1 }},
		{"negative false positive rate", func(o *Options) { o.FalsePositiveRate = -0.1 }},
		{"false positive rate at 1", func(o *Options) { o.FalsePositiveRate = 1 }},
		{"unknown compress option", func(o *Options) { o.CompressOption = compression.Tag(0xFF) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mut(&opts)
			err := opts.Validate()
			if err == nil {
				t.Fatalf("expected validation error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("error %v does not wrap ErrValidation", err)
			}
		})
	}
}
