package detect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScorePMSStrongOutweighsWeak(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	corpus := "portal at operadds.com, staff trained on dentrix and eaglesoft"

	guess, conf, clues := ScorePMS(store.PMS, corpus)
	// dentrix 5+1=6, eaglesoft 1, total 7.
	require.Equal(t, "dentrix", guess)
	require.InDelta(t, 0.857, conf, 0.0001)
	require.Contains(t, clues, "dentrix:STRONG:operadds.com")
	require.Contains(t, clues, "dentrix:WEAK:dentrix")
	require.Contains(t, clues, "eaglesoft:WEAK:eaglesoft")
}

func TestScorePMSTieResolvesToFirstVendorByName(t *testing.T) {
	t.Parallel()
	store := testStore(t)
	corpus := "dentrix eaglesoft"

	guess, conf, _ := ScorePMS(store.PMS, corpus)
	require.Equal(t, "dentrix", guess)
	require.InDelta(t, 0.5, conf, 0.0001)
}

func TestScorePMSNoMatchesIsUnknown(t *testing.T) {
	t.Parallel()
	store := testStore(t)

	guess, conf, clues := ScorePMS(store.PMS, "a plain dental website")
	require.Equal(t, "unknown", guess)
	require.Zero(t, conf)
	require.Empty(t, clues)
}

func TestScorePMSSingleVendorFullConfidence(t *testing.T) {
	t.Parallel()
	store := testStore(t)

	guess, conf, clues := ScorePMS(store.PMS, "patientviewer.com and WebForms.html links")
	require.Equal(t, "open_dental", guess)
	require.InDelta(t, 1.0, conf, 0.0001)
	require.Len(t, clues, 2)
}
