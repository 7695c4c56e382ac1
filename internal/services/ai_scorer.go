package services

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/domain/models"
	"github.com/maxaizer/shiftmatch/internal/ranking"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"strings"
)

type aiClient interface {
	GenerateResponse(ctx context.Context, request string) (string, error)
}

type listingsByID interface {
	ListByIDs(ctx context.Context, ids []snowflake.ID) ([]models.Listing, error)
	GetByID(ctx context.Context, id snowflake.ID) (*models.Listing, error)
}

type candidatesByID interface {
	ListByIDs(ctx context.Context, ids []snowflake.ID) ([]models.Candidate, error)
	GetByID(ctx context.Context, id snowflake.ID) (*models.Candidate, error)
}

// AIScorer asks a language model to rate how well candidates and listings fit each other.
type AIScorer struct {
	aiClient   aiClient
	listings   listingsByID
	candidates candidatesByID
}

func NewAIScorer(aiClient aiClient, listings listingsByID, candidates candidatesByID) *AIScorer {
	return &AIScorer{aiClient: aiClient, listings: listings, candidates: candidates}
}

type aiScore struct {
	ID      string   `json:"id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

func (a *AIScorer) ScoreListingsForCandidate(ctx context.Context, candidateID snowflake.ID,
	listingIDs []snowflake.ID) ([]ranking.Score, error) {

	candidate, err := a.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	listings, err := a.listings.ListByIDs(ctx, listingIDs)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Candidate based in %q.\nListings:\n", candidate.Location)
	for _, listing := range listings {
		fmt.Fprintf(&b, "- id %d: %s, %s, %s in %q from %s to %s\n", listing.ID, listing.Kind, listing.Role,
			listing.Status, listing.Location, listing.StartDate.Format("2006-01-02"), listing.EndDate.Format("2006-01-02"))
	}
	b.WriteString(scoringInstructions("listing"))

	return a.score(ctx, b.String(), listingIDs)
}

func (a *AIScorer) ScoreCandidatesForListing(ctx context.Context, listingID snowflake.ID,
	candidateIDs []snowflake.ID) ([]ranking.Score, error) {

	listing, err := a.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	candidates, err := a.candidates.ListByIDs(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Listing: %s %s in %q from %s to %s.\nCandidates:\n", listing.Kind, listing.Role, listing.Location,
		listing.StartDate.Format("2006-01-02"), listing.EndDate.Format("2006-01-02"))
	for _, candidate := range candidates {
		fmt.Fprintf(&b, "- id %d: based in %q\n", candidate.ID, candidate.Location)
	}
	b.WriteString(scoringInstructions("candidate"))

	return a.score(ctx, b.String(), candidateIDs)
}

func scoringInstructions(subject string) string {
	return fmt.Sprintf("You rank seasonal work matches. Rate every %[1]s from 0 to 100 for how well it fits. "+
		"Answer only with a JSON array of objects {\"id\": \"<%[1]s id>\", \"score\": <number>, "+
		"\"reasons\": [<short snake_case reason codes>]}.", subject)
}

func (a *AIScorer) score(ctx context.Context, request string, requested []snowflake.ID) ([]ranking.Score, error) {
	response, err := a.aiClient.GenerateResponse(ctx, request)
	if err != nil {
		return nil, err
	}

	scores, err := parseScores(response, requested)
	if err != nil {
		return nil, err
	}
	log.Debugf("scored %d of %d items", len(scores), len(requested))
	return scores, nil
}

// parseScores keeps only well-formed scores for requested ids, clamped to 0..100.
func parseScores(response string, requested []snowflake.ID) ([]ranking.Score, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	var raw []aiScore
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &raw); err != nil {
		return nil, errors.Wrap(err, "unexpected scoring response")
	}

	wanted := make(map[snowflake.ID]struct{}, len(requested))
	for _, id := range requested {
		wanted[id] = struct{}{}
	}

	scores := make([]ranking.Score, 0, len(raw))
	for _, item := range raw {
		id, err := snowflake.ParseString(item.ID)
		if err != nil {
			continue
		}
		if _, ok := wanted[id]; !ok {
			continue
		}
		scores = append(scores, ranking.Score{ID: id, Value: min(max(item.Score, 0), 100), Reasons: item.Reasons})
	}
	return scores, nil
}
