package level

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aalhour/ridgedb/internal/compression"
	"github.com/aalhour/ridgedb/internal/manifest"
	"github.com/aalhour/ridgedb/internal/table"
)

func testOptions() Options {
	return Options{
		NumLevels:                  4,
		MaxBytesForLevelBase:       4096,
		MaxBytesForLevelMultiplier: 10,
		TargetFileSizeBase:         1024,
		BlockSize:                  256,
		Compression:                compression.TagUncompressed,
		FalsePositiveRate:          0.01,
		SubcompactorNum:            2,
	}
}

// buildTable writes a fresh SST under dir containing the given sorted,
// distinct key-value pairs and opens it through cache.
func buildTable(t *testing.T, dir string, id uint64, cache *table.Cache, kvs [][2]string) *table.Table {
	t.Helper()
	b := table.NewBuilder(256, compression.TagUncompressed, 0.01)
	for _, kv := range kvs {
		if err := b.Add([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("add %q: %v", kv[0], err)
		}
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	path := filepath.Join(dir, fileName(id))
	if err := table.WriteFile(path, data, false); err != nil {
		t.Fatalf("write file: %v", err)
	}
	tbl, err := table.Open(path, id, cache)
	if err != nil {
		t.Fatalf("open table: %v", err)
	}
	return tbl
}

func kv(n int) [2]string {
	return [2]string{fmt.Sprintf("key%04d", n), fmt.Sprintf("val%04d", n)}
}

func newController(t *testing.T, dir string) *Controller {
	t.Helper()
	mf, l0IDs, err := manifest.Open(dir)
	if err != nil {
		t.Fatalf("manifest.Open: %v", err)
	}
	t.Cleanup(func() { mf.Close() })
	cache := table.NewCache(1 << 20)
	c, err := Open(dir, testOptions(), mf, cache, nil, l0IDs)
	if err != nil {
		t.Fatalf("level.Open: %v", err)
	}
	return c
}
