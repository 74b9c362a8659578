// Package support holds the godog step definitions for the docext
// command line and API scenarios.
package support

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/docext/cmd/docext/cmd"
	"github.com/MeKo-Tech/docext/internal/pipeline"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand string
	LastOutput  string
	LastStderr  string
	LastError   error

	// Test environment
	OriginalDir string
	TempDir     string
	savedEnv    map[string]*string

	// API state
	Pipeline           *pipeline.Pipeline
	HTTPServer         *httptest.Server
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a scenario directory and makes it the working
// directory, so relative document paths and config lookups stay inside it.
func NewTestContext() (*TestContext, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	tmp, err := os.MkdirTemp("", "docext-bdd-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	tc := &TestContext{OriginalDir: wd, TempDir: tmp, savedEnv: make(map[string]*string)}
	if err := tc.setEnv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg")); err != nil {
		return nil, err
	}
	if err := os.Chdir(tmp); err != nil {
		return nil, fmt.Errorf("failed to enter temp dir: %w", err)
	}
	return tc, nil
}

// setEnv sets a variable and remembers its previous value for Cleanup.
func (tc *TestContext) setEnv(key, value string) error {
	if _, saved := tc.savedEnv[key]; !saved {
		if old, ok := os.LookupEnv(key); ok {
			tc.savedEnv[key] = &old
		} else {
			tc.savedEnv[key] = nil
		}
	}
	return os.Setenv(key, value)
}

// RunCommand executes the docext command line in-process.
func (tc *TestContext) RunCommand(command string) {
	tc.LastCommand = command
	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "docext" {
		args = args[1:]
	}

	root := cmd.NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	tc.LastError = root.Execute()
	tc.LastOutput = stdout.String()
	tc.LastStderr = stderr.String()
}

// Path resolves a scenario-relative file name.
func (tc *TestContext) Path(name string) string {
	return filepath.Join(tc.TempDir, name)
}

// Cleanup stops the API server, restores the environment and removes the
// scenario directory.
func (tc *TestContext) Cleanup() error {
	if tc.HTTPServer != nil {
		tc.HTTPServer.Close()
		tc.HTTPServer = nil
	}
	if tc.Pipeline != nil {
		_ = tc.Pipeline.Close()
		tc.Pipeline = nil
	}

	for key, old := range tc.savedEnv {
		if old == nil {
			_ = os.Unsetenv(key)
		} else {
			_ = os.Setenv(key, *old)
		}
	}

	if err := os.Chdir(tc.OriginalDir); err != nil {
		return err
	}
	return os.RemoveAll(tc.TempDir)
}
