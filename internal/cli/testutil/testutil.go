// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/profq/internal/cli/config"
	"github.com/leapstack-labs/profq/internal/testutil"
)

// Result holds the captured output of one command execution.
type Result struct {
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
	Err    error
}

// Output returns the stdout output as a string.
func (r *Result) Output() string {
	return r.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (r *Result) ErrorOutput() string {
	return r.ErrOut.String()
}

// Execute runs cmd with args and captures its output.
func Execute(t *testing.T, cmd *cobra.Command, args ...string) *Result {
	t.Helper()
	r := &Result{Out: &bytes.Buffer{}, ErrOut: &bytes.Buffer{}}
	cmd.SetOut(r.Out)
	cmd.SetErr(r.ErrOut)
	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}
	cmd.SetArgs(args)
	r.Err = cmd.ExecuteContext(context.Background())
	return r
}

// Isolate runs the rest of the test from an empty working directory with an
// empty home directory, so no configuration file is discovered by accident.
// It returns the working directory.
func Isolate(t *testing.T) string {
	t.Helper()
	homedir.DisableCache = true
	t.Setenv("HOME", t.TempDir())
	wd := t.TempDir()
	t.Chdir(wd)
	return wd
}

// WriteConfig writes content as the reserved configuration file in dir and
// returns its path.
func WriteConfig(t *testing.T, dir, content string) string {
	t.Helper()
	testutil.WriteFiles(t, dir, map[string]string{config.DefaultFilename: content})
	return filepath.Join(dir, config.DefaultFilename)
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
