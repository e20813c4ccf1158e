package topologyrule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateRegexPrefix(t *testing.T) {
	block, ok, err := Evaluate("pokprod-b93r43s0", nil, `regex:r(\d+)`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "43", block)
}

func TestEvaluateRegexPrefixNoMatchIsEmptyNotError(t *testing.T) {
	block, ok, err := Evaluate("no-rack-here", nil, `regex:r(\d+)`)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", block)
}

func TestEvaluateCELExtractAndDivide(t *testing.T) {
	rule := `string(int(extract(node_name, "r(\\d+)")) / 10)`

	block, ok, err := Evaluate("pokprod-b93r43s0", nil, rule)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4", block)

	block, ok, err = Evaluate("pokprod-b93r9s0", nil, rule)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0", block)
}

func TestEvaluateCELBasicExtract(t *testing.T) {
	block, ok, err := Evaluate("pokprod-b93r43s0", nil, `extract(node_name, "r(\\d+)")`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "43", block)
}

func TestEvaluateCELCombineWithLabel(t *testing.T) {
	labels := map[string]string{"zone": "us-east-1a"}
	rule := `extract(node_name, "(node)-\\d+") + "-" + node_labels["zone"]`

	block, ok, err := Evaluate("node-123", labels, rule)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "node-us-east-1a", block)
}

func TestEvaluateCELCompileErrorSurfaces(t *testing.T) {
	_, ok, err := Evaluate("node-1", nil, `this is not valid cel (((`)
	assert.False(t, ok)
	assert.Error(t, err)
}
