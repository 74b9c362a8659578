package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Credentials holds the passwords tried when opening a protected PDF.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// Empty reports whether no password is set.
func (c Credentials) Empty() bool {
	return c.UserPassword == "" && c.OwnerPassword == ""
}

// ErrEncrypted is returned for a protected PDF that could not be opened
// with the supplied credentials.
var ErrEncrypted = errors.New("PDF is password protected")

// PageCount returns the number of pages in a PDF.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		if IsPasswordError(err) {
			return 0, fmt.Errorf("%w: %w", ErrEncrypted, err)
		}
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// IsEncrypted reports whether the PDF needs a password to be read.
func IsEncrypted(path string) (bool, error) {
	_, err := api.PageCountFile(path)
	if err == nil {
		return false, nil
	}
	if IsPasswordError(err) {
		return true, nil
	}
	return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
}

// Decrypt writes a decrypted copy of path to a temporary file and returns
// its name along with a cleanup function. An unprotected file is returned
// as is with a no-op cleanup.
func Decrypt(path string, creds Credentials) (string, func(), error) {
	noop := func() {}
	encrypted, err := IsEncrypted(path)
	if err != nil {
		return "", noop, err
	}
	if !encrypted {
		return path, noop, nil
	}
	if creds.Empty() {
		return "", noop, ErrEncrypted
	}

	tmp, err := os.CreateTemp("", "docext-decrypted-*.pdf")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temporary file: %w", err)
	}
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	conf := model.NewDefaultConfiguration()
	conf.UserPW = creds.UserPassword
	conf.OwnerPW = creds.OwnerPassword
	if err := api.DecryptFile(path, tmp.Name(), conf); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("%w: %w", ErrEncrypted, err)
	}
	return tmp.Name(), cleanup, nil
}

// IsPasswordError reports whether err looks like an encryption failure.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEncrypted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"password", "encrypted", "decrypt", "authentication"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
