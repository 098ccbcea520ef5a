package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/statchunk/internal/chunker"
)

const statute = `TITLE 17
ARTICLE 1
17-1-101. Executive director.
(1) The governor shall appoint an executive director of the department.
(2) The executive director shall manage all correctional facilities.
17-1-102. Definitions.
As used in this article, unless the context otherwise requires, the following definitions apply.
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestChunk_Table(t *testing.T) {
	path := writeFile(t, t.TempDir(), "title17.txt", statute)

	out, err := run(t, "chunk", path)
	require.NoError(t, err)
	assert.Contains(t, out, "title17.txt")
	assert.Contains(t, out, "17-1-101(1)")
	assert.Contains(t, out, "17-1-101(2)")
	assert.Contains(t, out, "17-1-102")
	assert.Contains(t, out, "TITLE 17 | ARTICLE 1")
}

func TestChunk_JSONKeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"c.txt", "a.txt", "b.txt", "d.txt"} {
		paths = append(paths, writeFile(t, dir, name, statute))
	}

	out, err := run(t, append([]string{"chunk", "--json", "--workers", "2"}, paths...)...)
	require.NoError(t, err)

	var results []fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.File)
		assert.Len(t, r.Chunks, 3)
		assert.Empty(t, r.Error)
	}
}

func TestChunk_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", statute)
	empty := writeFile(t, dir, "empty.txt", "no sections in here")

	out, err := run(t, "chunk", "--json", good, empty, filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 files failed")

	var results []fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.Contains(t, results[1].Error, chunker.ErrNoChunks.Error())
	assert.NotEmpty(t, results[2].Error)
}

func TestChunk_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "title17.rtf", statute)
	_, err := run(t, "chunk", path)
	require.Error(t, err)
}

func TestChunk_InvalidBounds(t *testing.T) {
	path := writeFile(t, t.TempDir(), "title17.txt", statute)
	_, err := run(t, "chunk", "--min-tokens", "900", "--max-tokens", "800", path)
	require.ErrorIs(t, err, chunker.ErrInvalidBounds)
}

func TestChunk_InvalidWorkers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "title17.txt", statute)
	_, err := run(t, "chunk", "--workers", "0", path)
	require.Error(t, err)
}

func TestPrepare(t *testing.T) {
	path := writeFile(t, t.TempDir(), "title17.txt", statute)

	out, err := run(t, "prepare", path)
	require.NoError(t, err)

	var batch chunker.Batch
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Equal(t, []string{"17-1-101_(1)", "17-1-101_(2)", "17-1-102"}, batch.IDs)
	assert.Len(t, batch.Documents, 3)
	assert.Equal(t, "TITLE 17 | ARTICLE 1", batch.Metadatas[0]["hierarchy"])
}

func TestPrepare_NoSectionsIsEmptyBatch(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "nothing to see")

	out, err := run(t, "prepare", path)
	require.NoError(t, err)
	var batch chunker.Batch
	require.NoError(t, json.Unmarshal([]byte(out), &batch))
	assert.Zero(t, batch.Len())
}

func TestIngestListDelete(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "title17.txt", statute)
	db := filepath.Join(dir, "index")
	common := []string{"--backend", "badger", "--badger-path", db, "--collection", "colorado"}

	out, err := run(t, append([]string{"ingest", "--doc-id", "title17", path}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "stored=3/3")

	out, err = run(t, append([]string{"ingest", path}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "duplicate_skipped")
	assert.Contains(t, out, "duplicate_of=title17")

	out, err = run(t, append([]string{"docs", "list"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "colorado (1 documents)")
	assert.Contains(t, out, "title17")

	out, err = run(t, append([]string{"docs", "delete", "title17"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "(3 chunks)")

	_, err = run(t, append([]string{"docs", "delete", "title17"}, common...)...)
	require.Error(t, err)
}

func TestIngest_DocIDNeedsSingleFile(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", statute)
	b := writeFile(t, dir, "b.txt", statute)
	_, err := run(t, "ingest", "--doc-id", "x", "--badger-path", filepath.Join(dir, "index"), a, b)
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "statchunk dev")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n  b\tc"))
	long := preview(string(bytes.Repeat([]byte("x"), 200)))
	assert.Len(t, []rune(long), previewRunes)
	assert.True(t, len(long) > 3 && long[len(long)-3:] == "...")
}
