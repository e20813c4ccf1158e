package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railtopo/railtopo/internal/models"
)

func intPtr(i int) *int { return &i }

func TestResolveParamsTable(t *testing.T) {
	cases := []struct {
		name    string
		params  models.NodeSelectionParams
		wantN   int
		wantG   *int
		wantErr bool
	}{
		{"num+gpus", models.NodeSelectionParams{NumNodes: intPtr(4), GPUsPerNode: intPtr(8)}, 4, intPtr(8), false},
		{"total+gpus_even", models.NodeSelectionParams{TotalGPUs: intPtr(16), GPUsPerNode: intPtr(8)}, 2, intPtr(8), false},
		{"total+gpus_uneven", models.NodeSelectionParams{TotalGPUs: intPtr(15), GPUsPerNode: intPtr(8)}, 0, nil, true},
		{"num_only", models.NodeSelectionParams{NumNodes: intPtr(3)}, 3, nil, false},
		{"total_only_optimize", models.NodeSelectionParams{TotalGPUs: intPtr(32)}, 0, intPtr(32), false},
		{"default", models.NodeSelectionParams{}, 2, nil, false},
		{"gpus_alone_error", models.NodeSelectionParams{GPUsPerNode: intPtr(8)}, 0, nil, true},
		{"num_and_total_conflict", models.NodeSelectionParams{NumNodes: intPtr(2), TotalGPUs: intPtr(16)}, 0, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveParams(tc.params)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantN, got.numNodes)
			if tc.wantG == nil {
				assert.Nil(t, got.gpusPerNode)
			} else {
				require.NotNil(t, got.gpusPerNode)
				assert.Equal(t, *tc.wantG, *got.gpusPerNode)
			}
		})
	}
}
