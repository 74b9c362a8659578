package pdf

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docext/internal/testutil"
)

func TestDecryptUnprotectedFileIsReturnedAsIs(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePDF(t, dir, "plain.pdf", []testutil.PDFPage{testutil.ParagraphPage("open")})

	encrypted, err := IsEncrypted(path)
	require.NoError(t, err)
	assert.False(t, encrypted)

	out, cleanup, err := Decrypt(path, Credentials{})
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, path, out)
}

func TestDecryptProtectedFile(t *testing.T) {
	dir := t.TempDir()
	plain := testutil.WritePDF(t, dir, "plain.pdf", []testutil.PDFPage{testutil.ParagraphPage("Confidential figures")})
	locked := filepath.Join(dir, "locked.pdf")
	require.NoError(t, api.EncryptFile(plain, locked, model.NewAESConfiguration("secret", "owner", 128)))

	encrypted, err := IsEncrypted(locked)
	require.NoError(t, err)
	assert.True(t, encrypted)

	_, _, err = Decrypt(locked, Credentials{})
	require.ErrorIs(t, err, ErrEncrypted)

	_, _, err = Decrypt(locked, Credentials{UserPassword: "wrong"})
	require.ErrorIs(t, err, ErrEncrypted)

	out, cleanup, err := Decrypt(locked, Credentials{UserPassword: "secret"})
	require.NoError(t, err)
	defer cleanup()
	assert.NotEqual(t, locked, out)

	n, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIsPasswordError(t *testing.T) {
	assert.False(t, IsPasswordError(nil))
	assert.True(t, IsPasswordError(ErrEncrypted))
	assert.True(t, IsPasswordError(errors.New("please provide the correct password")))
	assert.False(t, IsPasswordError(errors.New("xref table corrupt")))
}

func TestPageFromFilename(t *testing.T) {
	tests := map[string]int{
		"scan_3_Im0.png":       3,
		"my_report_12_Im1.jpg": 12,
		"page_1_image_1.png":   0,
		"cover.png":            0,
	}
	for name, want := range tests {
		got, ok := pageFromFilename(name)
		assert.Equal(t, want != 0, ok, name)
		assert.Equal(t, want, got, name)
	}
}
