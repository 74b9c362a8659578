package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docext/internal/pipeline"
	"github.com/MeKo-Tech/docext/internal/testutil"
)

// isolate keeps config files of the host out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "Available Commands:")
	for _, name := range []string{"extract", "batch", "serve", "config", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docext ")
}

func TestExtractCommand(t *testing.T) {
	dir := isolate(t)
	doc := testutil.WritePDF(t, dir, "letter.pdf", []testutil.PDFPage{
		testutil.ParagraphPage("Dear customer, your parcel has shipped"),
	})

	t.Run("text", func(t *testing.T) {
		out, _, err := run(t, "extract", doc, "--no-ocr")
		require.NoError(t, err)
		assert.Contains(t, out, "your parcel has shipped")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, "extract", doc, "--no-ocr", "--format", "json")
		require.NoError(t, err)

		var res pipeline.ExtractionResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, 1, res.PagesProcessed)
		assert.Equal(t, pipeline.MethodStandard, res.Method)
	})

	t.Run("output file", func(t *testing.T) {
		target := filepath.Join(dir, "letter.txt")
		out, _, err := run(t, "extract", doc, "--no-ocr", "-o", target)
		require.NoError(t, err)
		assert.Empty(t, out)

		content, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(content), "your parcel has shipped")
	})

	t.Run("memory cache", func(t *testing.T) {
		_, _, err := run(t, "extract", doc, "--no-ocr", "--cache", "memory")
		require.NoError(t, err)
	})
}

func TestExtractCommand_Errors(t *testing.T) {
	dir := isolate(t)
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("plain"), 0o600))

	_, _, err := run(t, "extract", notes, "--no-ocr")
	require.ErrorIs(t, err, pipeline.ErrUnsupportedFileType)

	_, _, err = run(t, "extract", notes, "--no-ocr", "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only available for batch")

	_, _, err = run(t, "extract", notes, "--no-ocr", "--level", "extreme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid preprocess.level")

	_, _, err = run(t, "extract")
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	dir := isolate(t)
	in := filepath.Join(dir, "in")
	require.NoError(t, os.MkdirAll(in, 0o750))
	testutil.WritePDF(t, in, "a.pdf", []testutil.PDFPage{testutil.ParagraphPage("First document body")})
	testutil.WritePDF(t, in, "b.pdf", []testutil.PDFPage{testutil.ParagraphPage("Second document body")})

	t.Run("json to stdout", func(t *testing.T) {
		out, _, err := run(t, "batch", in, "--no-ocr", "--format", "json", "--workers", "2")
		require.NoError(t, err)

		var decoded struct {
			Documents []pipeline.BatchResult `json:"documents"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		require.Len(t, decoded.Documents, 2)
		assert.Contains(t, decoded.Documents[0].Result.Text, "First document")
		assert.Contains(t, decoded.Documents[1].Result.Text, "Second document")
	})

	t.Run("output dir and stats", func(t *testing.T) {
		outDir := filepath.Join(dir, "out")
		_, stderr, err := run(t, "batch", in, "--no-ocr", "--output-dir", outDir, "--stats")
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(outDir, "a.txt"))
		assert.FileExists(t, filepath.Join(outDir, "b.txt"))
		assert.Contains(t, stderr, "Total documents: 2")
	})

	t.Run("csv per document is rejected", func(t *testing.T) {
		_, _, err := run(t, "batch", in, "--no-ocr", "--output-dir", filepath.Join(dir, "csv"), "--format", "csv")
		assert.Error(t, err)
	})

	t.Run("fail fast reports broken documents", func(t *testing.T) {
		broken := filepath.Join(dir, "broken.pdf")
		require.NoError(t, os.WriteFile(broken, []byte("not a pdf"), 0o600))

		out, _, err := run(t, "batch", broken, "--no-ocr", "--continue-on-error=false")
		require.ErrorIs(t, err, pipeline.ErrOpenDocument)
		assert.Contains(t, out, "ERROR:")

		_, _, err = run(t, "batch", broken, "--no-ocr")
		assert.NoError(t, err)
	})
}

func TestConfigCommands(t *testing.T) {
	dir := isolate(t)

	t.Run("show reflects environment", func(t *testing.T) {
		t.Setenv("DOCEXT_BATCH_WORKERS", "7")
		out, _, err := run(t, "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "workers: 7")
		assert.Contains(t, out, "quality_threshold: 100")
	})

	t.Run("invalid environment fails", func(t *testing.T) {
		t.Setenv("DOCEXT_PREPROCESS_LEVEL", "bogus")
		_, _, err := run(t, "config", "show")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid preprocess.level")
	})

	t.Run("init", func(t *testing.T) {
		target := filepath.Join(dir, "generated.yaml")
		_, _, err := run(t, "config", "init", target)
		require.NoError(t, err)
		assert.FileExists(t, target)

		_, _, err = run(t, "config", "init", target)
		require.Error(t, err)

		_, _, err = run(t, "config", "init", target, "--force")
		require.NoError(t, err)

		out, _, err := run(t, "--config", target, "config", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "# loaded from "+target)
	})

	t.Run("paths", func(t *testing.T) {
		out, _, err := run(t, "config", "paths")
		require.NoError(t, err)
		assert.Contains(t, out, filepath.Join(dir, "xdg", "docext"))
	})
}
