package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/logger"
	"github.com/maxaizer/shiftmatch/internal/metrics"
	"github.com/maxaizer/shiftmatch/internal/ranking"
	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"time"
)

type Scorer interface {
	ScoreListingsForCandidate(ctx context.Context, candidateID snowflake.ID, listingIDs []snowflake.ID) ([]ranking.Score, error)
	ScoreCandidatesForListing(ctx context.Context, listingID snowflake.ID, candidateIDs []snowflake.ID) ([]ranking.Score, error)
}

// ScoringService is the best-effort front of a Scorer: results are cached, calls are bounded by a timeout
// and failures only mean fewer scores.
type ScoringService struct {
	scorer  Scorer
	cache   *gocache.Cache
	timeout time.Duration
}

// NewScoringService accepts a nil scorer, in which case nothing is ever scored.
func NewScoringService(scorer Scorer, timeout, cacheTTL time.Duration) *ScoringService {
	return &ScoringService{
		scorer:  scorer,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		timeout: timeout,
	}
}

func (s *ScoringService) ScoreListings(ctx context.Context, candidateID snowflake.ID, listingIDs []snowflake.ID) []ranking.Score {
	return s.score(ctx, "listing", candidateID, listingIDs, s.scorerFunc(func(ctx context.Context, ids []snowflake.ID) ([]ranking.Score, error) {
		return s.scorer.ScoreListingsForCandidate(ctx, candidateID, ids)
	}))
}

func (s *ScoringService) ScoreCandidates(ctx context.Context, listingID snowflake.ID, candidateIDs []snowflake.ID) []ranking.Score {
	return s.score(ctx, "candidate", listingID, candidateIDs, s.scorerFunc(func(ctx context.Context, ids []snowflake.ID) ([]ranking.Score, error) {
		return s.scorer.ScoreCandidatesForListing(ctx, listingID, ids)
	}))
}

type scoreFunc func(ctx context.Context, ids []snowflake.ID) ([]ranking.Score, error)

func (s *ScoringService) scorerFunc(fn scoreFunc) scoreFunc {
	if s.scorer == nil {
		return nil
	}
	return fn
}

func (s *ScoringService) score(ctx context.Context, target string, subjectID snowflake.ID, ids []snowflake.ID,
	fn scoreFunc) []ranking.Score {

	var scores []ranking.Score
	var missing []snowflake.ID
	for _, id := range ids {
		if cached, found := s.cache.Get(scoreCacheKey(target, subjectID, id)); found {
			scores = append(scores, cached.(ranking.Score))
		} else {
			missing = append(missing, id)
		}
	}

	if fn == nil || len(missing) == 0 {
		return scores
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	fresh, err := fn(ctx, missing)
	metrics.ScoringDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).Errorf("failed to score %ss: %v", target, err)
		}
		return scores
	}

	for _, score := range fresh {
		s.cache.SetDefault(scoreCacheKey(target, subjectID, score.ID), score)
	}
	return append(scores, fresh...)
}

func scoreCacheKey(target string, subjectID, id snowflake.ID) string {
	return fmt.Sprintf("%s:%d:%d", target, subjectID, id)
}
