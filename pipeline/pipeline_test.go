package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"zonedex/sortedrun"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), Config{})
	require.Error(t, err)
}

// End-to-end: several small documents, multiple workers, a tiny
// treeCapacity that forces mid-file spills, merged into one dictionary.
func TestRunEndToEnd(t *testing.T) {
	base := t.TempDir()

	files := []string{
		writeFile(t, base, "a.xml", `<title>Hello World</title><text>hello again world</text>`),
		writeFile(t, base, "b.xml", `<title>Another Doc</title><text>another round of words</text>`),
	}

	cfg := Config{
		InputFiles:   files,
		Destination:  filepath.Join(base, "dict"),
		BufferDir:    filepath.Join(base, "runs"),
		Workers:      2,
		TreeCapacity: 1, // forces frequent spills
		BlockSize:    2,
		Zones:        []string{"title", "text"},
	}

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Greater(t, result.TermCount, uint64(0))

	r, err := sortedrun.Open(cfg.Destination, len(cfg.Zones))
	require.NoError(t, err)
	defer r.Close()

	var prev string
	count := 0
	for {
		it, err := r.NextTerm()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.True(t, prev == "" || prev < it.Term, "terms must be strictly ascending, got %q after %q", it.Term, prev)
		prev = it.Term
		count++
	}
	require.Equal(t, int(result.TermCount), count)

	_, err = os.Stat(filepath.Join(cfg.Destination, "info.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Destination, "files.txt"))
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.BufferDir)
	require.NoError(t, err)
	require.Empty(t, entries, "spilled run directories should be deleted after a successful merge")
}

func TestRunSingleWorkerNoSpills(t *testing.T) {
	base := t.TempDir()
	files := []string{
		writeFile(t, base, "a.xml", `<text>repeat repeat repeat unique</text>`),
	}

	cfg := Config{
		InputFiles:   files,
		Destination:  filepath.Join(base, "dict"),
		BufferDir:    filepath.Join(base, "runs"),
		Workers:      1,
		TreeCapacity: 1024,
		BlockSize:    4,
		Zones:        []string{"text"},
	}

	result, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(2), result.TermCount)

	r, err := sortedrun.Open(cfg.Destination, 1)
	require.NoError(t, err)
	defer r.Close()

	it, err := r.NextTerm()
	require.NoError(t, err)
	require.Equal(t, "repeat", it.Term)
	require.Equal(t, uint64(3), it.TotalUseCount)
}
