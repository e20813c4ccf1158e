package hcaprobe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripANSIRemovesColorCodes(t *testing.T) {
	raw := "\x1b[32m{\"namespaces\":[]}\x1b[0m"
	assert.Equal(t, `{"namespaces":[]}`, StripANSI(raw))
}

func TestParseMultiNamespace(t *testing.T) {
	raw := `{"namespaces":[
		{"namespace_type":"Host","namespace_id":"root","config":{
			"active_hcas":["mlx5_0"],"nccl_hcas":["mlx5_0"],"ucx_hcas":["mlx5_0"],
			"gid_index":3,"gid_index_counts":{"3":1},"hca_details":[]}},
		{"namespace_type":"Pod","namespace_id":"ns1","pod_name":"p1","config":{
			"active_hcas":["mlx5_1"],"nccl_hcas":["mlx5_1"],"ucx_hcas":["mlx5_1"],
			"gid_index":1,"gid_index_counts":{"1":1},"hca_details":[]}}
	]}`

	report, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, report.Namespaces, 2)
	assert.Equal(t, NamespaceHost, report.Namespaces[0].NamespaceType)

	agg := report.Aggregate()
	assert.ElementsMatch(t, []string{"mlx5_0", "mlx5_1"}, agg.ActiveHCAs)
	assert.True(t, agg.MismatchedGID, "gid index 3 vs 1 should be flagged as mismatched")
}

func TestParseLegacySingleNamespace(t *testing.T) {
	raw := `{"active_hcas":["mlx5_0"],"nccl_hcas":["mlx5_0"],"ucx_hcas":["mlx5_0"],
		"gid_index_counts":{}, "hca_details":[]}`

	report, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, report.Namespaces, 1)
	assert.Equal(t, NamespaceHost, report.Namespaces[0].NamespaceType)
	assert.Equal(t, []string{"mlx5_0"}, report.Namespaces[0].Config.ActiveHCAs)
}

func TestParseMalformedReturnsError(t *testing.T) {
	_, err := Parse("not json at all")
	assert.Error(t, err)
}

func TestAggregateDeduplicatesHCANames(t *testing.T) {
	report := &Report{Namespaces: []Namespace{
		{Config: Config{ActiveHCAs: []string{"mlx5_0", "mlx5_1"}}},
		{Config: Config{ActiveHCAs: []string{"mlx5_0"}}},
	}}
	agg := report.Aggregate()
	assert.ElementsMatch(t, []string{"mlx5_0", "mlx5_1"}, agg.ActiveHCAs)
}
