package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAnalysisResponseDefaultsAndClamps(t *testing.T) {
	result, err := parseAnalysisResponse(`{"score": 120, "feedback": "ok"}`)
	require.NoError(t, err)
	require.Equal(t, float64(100), result.MaxScore, "missing max_score defaults to 100")
	require.Equal(t, float64(100), result.Score, "score clamps to max_score")

	negative, err := parseAnalysisResponse(`{"score": -5, "max_score": 10, "feedback": "incomplete"}`)
	require.NoError(t, err)
	require.Equal(t, float64(0), negative.Score)
}

func TestParseAnalysisResponseStructuredFields(t *testing.T) {
	result, err := parseAnalysisResponse(`{
		"score": 7,
		"max_score": 10,
		"feedback": "solid work",
		"breakdown": {"q1": 3, "q2": 4},
		"mistakes": [{"pattern": "sign errors", "description": "dropped a minus"}],
		"strengths": ["algebra"],
		"weaknesses": ["negatives"]
	}`)
	require.NoError(t, err)
	require.Equal(t, float64(7), result.Score)
	require.Len(t, result.Mistakes, 1)
	require.Equal(t, "sign errors", result.Mistakes[0].Pattern)
	require.Equal(t, []string{"algebra"}, result.Strengths)
	require.Contains(t, result.Breakdown, "q1")
}

func TestParseAnalysisResponseMalformed(t *testing.T) {
	_, err := parseAnalysisResponse("not json at all")
	require.ErrorIs(t, err, ErrMalformedResponse)

	_, err = parseAnalysisResponse(`{"feedback": "missing score"}`)
	require.ErrorIs(t, err, ErrMalformedResponse, "schema requires a numeric score")
}
