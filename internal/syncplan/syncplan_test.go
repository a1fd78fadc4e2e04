package syncplan

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func mkdirAt(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

// TestCompute_ThreeWaySyncScenario exercises the seed scenario from spec §8:
// sync mode, on_conflict=new, on_delete=delete, with one client-only file,
// one server-only file, a shared directory, and a shared file where the
// server copy is newer.
func TestCompute_ThreeWaySyncScenario(t *testing.T) {
	root := t.TempDir()
	base := time.UnixMilli(0)

	mkdirAt(t, filepath.Join(root, "a"), base)
	touch(t, filepath.Join(root, "a", "x.txt"), base.Add(100*time.Millisecond))
	touch(t, filepath.Join(root, "b.txt"), base.Add(200*time.Millisecond))

	clientEntries := []Entry{
		{Name: "a", TimestampMs: 150, IsDir: true},
		{Name: "a/x.txt", TimestampMs: 50, IsDir: false},
		{Name: "c.txt", TimestampMs: 300, IsDir: false},
	}

	plan, err := Compute(root, ModeSync, ConflictNew, DeleteDelete, clientEntries)
	require.NoError(t, err)

	assert.Equal(t, []string{"c.txt"}, plan.ToUpload)
	assert.Equal(t, []string{"b.txt"}, plan.ToDownload)
	assert.Equal(t, []string{"a/x.txt"}, plan.ToDeleteC)
	assert.Empty(t, plan.ToDeleteS)
	assert.Empty(t, plan.ToCreateC)
	assert.Empty(t, plan.ToCreateS)
	assert.Empty(t, plan.ToRenameC)
	assert.Empty(t, plan.ToRenameS)
	assert.NotEmpty(t, plan.Session)

	resp := plan.Response()
	assert.Equal(t, []string{"c.txt"}, resp.Upload)
	assert.Equal(t, []string{"b.txt"}, resp.Download)
	assert.Equal(t, []string{"a/x.txt"}, resp.Delete)
	assert.Empty(t, resp.Create)
	assert.Empty(t, resp.Rename)
}

// TestCompute_DownloadReplace checks the testable property from spec §8:
// mode=download, on_conflict=replace ⇒ every shared name ends up in delete_c
// plus exactly one of download/create_c, matching its server-side type.
func TestCompute_DownloadReplace(t *testing.T) {
	root := t.TempDir()
	now := time.UnixMilli(1000)
	mkdirAt(t, filepath.Join(root, "docs"), now)
	touch(t, filepath.Join(root, "docs", "readme.txt"), now)
	touch(t, filepath.Join(root, "notes.txt"), now)

	clientEntries := []Entry{
		{Name: "docs", TimestampMs: 500, IsDir: false}, // client thinks "docs" is a file
		{Name: "notes.txt", TimestampMs: 500, IsDir: false},
	}

	plan, err := Compute(root, ModeDownload, ConflictReplace, DeleteDelete, clientEntries)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"docs", "notes.txt"}, plan.ToDeleteC)
	assert.Equal(t, []string{"docs"}, plan.ToCreateC)
	assert.Equal(t, []string{"docs/readme.txt", "notes.txt"}, plan.ToDownload)
}

// TestCompute_UploadOnlyClientDirectoriesAndFiles checks spec §4.9 rule 1:
// client-only entries under an uploading mode split into create_s (dirs)
// and upload (files).
func TestCompute_UploadOnlyClientDirectoriesAndFiles(t *testing.T) {
	root := t.TempDir()

	clientEntries := []Entry{
		{Name: "new-dir", TimestampMs: 1, IsDir: true},
		{Name: "new-file.txt", TimestampMs: 1, IsDir: false},
	}

	plan, err := Compute(root, ModeUpload, ConflictReplace, DeleteDelete, clientEntries)
	require.NoError(t, err)

	assert.Equal(t, []string{"new-dir"}, plan.ToCreateS)
	assert.Equal(t, []string{"new-file.txt"}, plan.ToUpload)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"new-dir"}, names)
}

// TestCompute_OnDeleteKeep checks that on_delete values other than "delete"
// leave only-one-side entries untouched when the mode does not already
// cover that direction.
func TestCompute_OnDeleteKeep(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "server-only.txt"), time.UnixMilli(1))

	clientEntries := []Entry{
		{Name: "client-only.txt", TimestampMs: 1, IsDir: false},
	}

	plan, err := Compute(root, ModeUpload, ConflictReplace, OnDelete("keep"), clientEntries)
	require.NoError(t, err)

	assert.Empty(t, plan.ToDeleteS)
	assert.Equal(t, []string{"client-only.txt"}, plan.ToUpload)
}

// TestCompute_SyncBothConflictRenamesServerCopy checks spec §4.9 rule 3's
// sync+both branch: the server's file is renamed aside and both upload and
// download end up carrying the name (client's version overwrites the
// original name on the server; the renamed former server copy is handed
// back to the client).
func TestCompute_SyncBothConflictRenamesServerCopy(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "shared.txt"), time.UnixMilli(777))

	clientEntries := []Entry{
		{Name: "shared.txt", TimestampMs: 555, IsDir: false},
	}

	plan, err := Compute(root, ModeSync, ConflictBoth, DeleteDelete, clientEntries)
	require.NoError(t, err)

	require.Len(t, plan.ToRenameS, 1)
	assert.Equal(t, "shared.txt", plan.ToRenameS[0].From)
	assert.Contains(t, plan.ToRenameS[0].To, "srv-777")
	assert.Equal(t, []string{"shared.txt"}, plan.ToUpload)
	assert.Equal(t, []string{plan.ToRenameS[0].To}, plan.ToDownload)

	_, err = os.Stat(filepath.Join(root, "shared.txt"))
	assert.True(t, os.IsNotExist(err), "original server file should have been renamed away")
	_, err = os.Stat(filepath.Join(root, plan.ToRenameS[0].To))
	assert.NoError(t, err, "renamed server file should exist on disk")
}

// TestCompute_SyncBothConflictDirFileMismatchFails checks spec §4.9 rule 3:
// sync+both requires the same type on both sides.
func TestCompute_SyncBothConflictDirFileMismatchFails(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "mixed"), time.UnixMilli(1))

	clientEntries := []Entry{
		{Name: "mixed", TimestampMs: 1, IsDir: true},
	}

	_, err := Compute(root, ModeSync, ConflictBoth, DeleteDelete, clientEntries)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDirFileConflict)
}

func TestEntry_JSONRoundTrip(t *testing.T) {
	dir := Entry{Name: "a", TimestampMs: 150, IsDir: true, CRC: -2}
	data, err := dir.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["a",150,-1,-2]`, string(data))

	var decoded Entry
	require.NoError(t, decoded.UnmarshalJSON([]byte(`["a/x.txt",50,0,-2]`)))
	assert.Equal(t, Entry{Name: "a/x.txt", TimestampMs: 50, IsDir: false, CRC: -2}, decoded)
}
