package payload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agenterrors "github.com/sciforge/rangeagent/internal/errors"
)

func writeJobDescription(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobdesc.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRetrieveExtractsCommandAndArgs(t *testing.T) {
	t.Parallel()

	source := writeJobDescription(t, `{
		"taskID": 123,
		"execCommand": "/opt/payload/run.sh",
		"jobPars": "--events 100 --threads 4"
	}`)

	r, err := NewResolver(ResolverOptions{
		Source:      source,
		CommandExpr: "execCommand",
		ArgsExpr:    "jobPars",
		WorkDir:     "/work",
	})
	require.NoError(t, err)

	desc, err := r.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/opt/payload/run.sh", desc.Executable)
	assert.Equal(t, []string{"--events", "100", "--threads", "4"}, desc.Args)
	assert.Equal(t, "/work", desc.WorkDir)
}

func TestRetrieveNestedExpression(t *testing.T) {
	t.Parallel()

	source := writeJobDescription(t, `{"payload": {"transform": "athena.py"}}`)

	r, err := NewResolver(ResolverOptions{
		Source:      source,
		CommandExpr: "payload.transform",
	})
	require.NoError(t, err)

	desc, err := r.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "athena.py", desc.Executable)
	assert.Empty(t, desc.Args)
}

func TestRetrieveMissingCommandIsConfigurationError(t *testing.T) {
	t.Parallel()

	source := writeJobDescription(t, `{"other": "field"}`)

	r, err := NewResolver(ResolverOptions{Source: source, CommandExpr: "execCommand"})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background())
	require.Error(t, err)
	assert.True(t, agenterrors.IsCode(err, agenterrors.ErrCodeConfiguration))
}

func TestNewResolverRejectsBadExpression(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(ResolverOptions{Source: "jobdesc.json", CommandExpr: "not[a]valid["})
	require.Error(t, err)

	_, err = NewResolver(ResolverOptions{Source: "", CommandExpr: "execCommand"})
	require.Error(t, err)
}
