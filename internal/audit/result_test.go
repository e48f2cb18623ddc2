package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResultRowMatchesColumnCount(t *testing.T) {
	t.Parallel()
	r := Result{
		ID: "1", Name: "A", Website: "https://a.example.com",
		FinalURL: "https://a.example.com/", HTTPStatus: 200,
		HasOnlineBooking: true,
		PMSConfidence:    0.857,
	}
	row := r.Row()
	require.Len(t, row, len(ResultColumns))
	require.Equal(t, "200", row[4])
	require.Equal(t, "true", row[5])
	require.Equal(t, "0.857", row[17])
}

func TestResultRowOmitsZeroStatus(t *testing.T) {
	t.Parallel()
	row := Result{ID: "1"}.Row()
	require.Equal(t, "", row[4])
}

func TestHasSignal(t *testing.T) {
	t.Parallel()
	require.False(t, Result{}.HasSignal())
	require.True(t, Result{HTTPStatus: 404}.HasSignal())
	require.True(t, Result{PMSCluesSite: "dentrix:WEAK:dentrix"}.HasSignal())
	require.True(t, Result{ThirdPartyBookingClues: "nexhealth"}.HasSignal())
	require.True(t, Result{PhoneCluesSite: "mango voice"}.HasSignal())
	require.False(t, Result{LikelyPMS: "unknown"}.HasSignal())
}
