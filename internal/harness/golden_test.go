package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGoldenScenarios runs every scenario under testdata/scenarios against
// its golden digest. To regenerate after an intended change:
//
//	go test ./internal/harness -run TestGoldenScenarios -update
func TestGoldenScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestDiffLine_EmptyField(t *testing.T) {
	doc := testDocument()
	sr, _ := doc.Sections.Get("algorithms")
	d := sr.Diffs[0]
	d.Field = ""
	require.Equal(t, "DES REMOVED WARN -: present only in reference", diffLine(d))
}
