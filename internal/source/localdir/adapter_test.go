package localdir

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestAdapterReadsManifestAndOrdersByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_resume.pdf", "%PDF")
	writeFile(t, dir, "a_resume.txt", "Go developer")
	writeFile(t, dir, "notes.xyz", "ignored")
	writeFile(t, dir, ManifestFileName,
		`{"filename":"b_resume.pdf","candidate_name":"Bob Stone","email":"bob@example.com","job_role":"SRE"}`+"\n"+
			"not json\n")

	a := NewAdapter(dir, "Backend Engineer")
	items, next, err := a.FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, items, 2)

	assert.Equal(t, "a_resume.txt", items[0].Name)
	assert.Equal(t, "text/plain", items[0].MIMEType)
	assert.Equal(t, "A Resume", items[0].CandidateName)
	assert.Equal(t, "Backend Engineer", items[0].JobRole)

	assert.Equal(t, "b_resume.pdf", items[1].Name)
	assert.Equal(t, "application/pdf", items[1].MIMEType)
	assert.Equal(t, "Bob Stone", items[1].CandidateName)
	assert.Equal(t, "bob@example.com", items[1].Email)
	assert.Equal(t, "SRE", items[1].JobRole)
}

func TestAdapterPaginates(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"1.txt", "2.txt", "3.txt"} {
		writeFile(t, dir, n, "x")
	}

	a := NewAdapter(dir, "QA")
	first, next, err := a.FetchBatch(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, "2", next)

	second, next, err := a.FetchBatch(context.Background(), next, 2)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Empty(t, next)

	total, err := a.GetTotalCount()
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestAdapterMissingDirectory(t *testing.T) {
	a := NewAdapter(filepath.Join(t.TempDir(), "missing"), "QA")
	_, _, err := a.FetchBatch(context.Background(), "", 10)
	assert.Error(t, err)
}
