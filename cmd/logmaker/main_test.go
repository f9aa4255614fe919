package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(testutil.TestContext(t))
	return out.String(), err
}

func TestGenerate(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "example.json")

	out, err := run(t, "25", "--out", dest, "--seed", "3")
	require.NoError(t, err)
	assert.Equal(t, dest+"\n", out)

	first := testutil.ReadFile(t, dest)
	assert.Len(t, strings.Split(strings.TrimSpace(string(first)), "\n"), 25)
}

func TestGenerateInvalidCount(t *testing.T) {
	for _, arg := range []string{"many", "1.5"} {
		_, err := run(t, arg, "--out", filepath.Join(t.TempDir(), "x.json"))
		require.Error(t, err, arg)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), arg)
	}
}
