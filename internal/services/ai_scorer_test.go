package services

import (
	"fmt"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func Test_ParseScores(t *testing.T) {
	requested := []snowflake.ID{100, 200, 300}
	response := "```json\n" + `[
		{"id": "100", "score": 72.5, "reasons": ["same_location"]},
		{"id": "200", "score": 140},
		{"id": "300", "score": -3},
		{"id": "999", "score": 50},
		{"id": "not-an-id", "score": 50}
	]` + "\n```"

	scores, err := parseScores(response, requested)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, snowflake.ID(100), scores[0].ID)
	assert.Equal(t, 72.5, scores[0].Value)
	assert.Equal(t, []string{"same_location"}, scores[0].Reasons)
	assert.Equal(t, 100.0, scores[1].Value)
	assert.Equal(t, 0.0, scores[2].Value)
}

func Test_ParseScores_RejectsProse(t *testing.T) {
	_, err := parseScores("I think the first listing fits best.", []snowflake.ID{1})
	assert.Error(t, err)
}

func Test_AIScorer_ScoresListings(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	client := &mockAiClient{response: fmt.Sprintf(`[{"id": "%d", "score": 88}]`, listing.ID)}
	scorer := NewAIScorer(client, f.listings, f.candidates)

	scores, err := scorer.ScoreListingsForCandidate(f.ctx, candidate.UserID, []snowflake.ID{listing.ID})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 88.0, scores[0].Value)

	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0], listing.ID.String())
	assert.Contains(t, client.requests[0], "bartender")
}

func Test_AIScorer_PropagatesClientErrors(t *testing.T) {
	f := newFixture(t)
	orgID, _ := f.org("Visby Hamn")
	listing := f.listing(orgID, models.ListingJob, "bartender", "Visby")
	candidate := f.candidate("Alva", "Visby", models.VisibilityPublic)

	client := &mockAiClient{err: errors.New("rate limit reached")}
	scorer := NewAIScorer(client, f.listings, f.candidates)

	_, err := scorer.ScoreCandidatesForListing(f.ctx, listing.ID, []snowflake.ID{candidate.UserID})
	assert.Error(t, err)

	scores, err := scorer.ScoreCandidatesForListing(f.ctx, listing.ID, []snowflake.ID{f.node.Generate()})
	require.NoError(t, err)
	assert.Empty(t, scores, "unknown candidates are not sent to the model")
	assert.Len(t, client.requests, 1)
}
