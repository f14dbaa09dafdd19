package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

func TestValidateActionFileRejectsDuplicateKey(t *testing.T) {
	t.Parallel()

	file := &ActionFile{Actions: []ActionConfig{
		{Kind: "build", Name: "img"},
		{Kind: "build", Name: "img"},
	}}

	err := ValidateActionFile(file)
	require.Error(t, err)

	var ce *coreerrors.CoreError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, coreerrors.KindValidation, ce.Kind)
}

func TestValidateActionFileRejectsBadName(t *testing.T) {
	t.Parallel()

	file := &ActionFile{Actions: []ActionConfig{
		{Kind: "build", Name: "has space"},
	}}

	err := ValidateActionFile(file)
	require.Error(t, err)
}

func TestValidateActionFileAcceptsWellFormedActions(t *testing.T) {
	t.Parallel()

	file := &ActionFile{Actions: []ActionConfig{
		{Kind: "build", Name: "img"},
		{Kind: "deploy", Name: "svc", DependsOn: []DependencyConfig{
			{Kind: "build", Name: "img", Outputs: "static"},
		}},
	}}

	require.NoError(t, ValidateActionFile(file))
}

func TestSnippetRendersCaretUnderColumn(t *testing.T) {
	t.Parallel()

	source := "actions:\n  - kind: build\n    name: bad name\n"
	snippet := Snippet(source, Position{Line: 3, Column: 11})
	require.Contains(t, snippet, "bad name")
	require.Contains(t, snippet, "^")
}
