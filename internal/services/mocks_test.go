package services

import (
	"context"
	"github.com/bwmarrin/snowflake"
	"github.com/maxaizer/shiftmatch/internal/ranking"
	"github.com/stretchr/testify/mock"
	"sync"
	"time"
)

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) ScoreListingsForCandidate(ctx context.Context, candidateID snowflake.ID,
	listingIDs []snowflake.ID) ([]ranking.Score, error) {

	args := m.Called(ctx, candidateID, listingIDs)
	scores, _ := args.Get(0).([]ranking.Score)
	return scores, args.Error(1)
}

func (m *mockScorer) ScoreCandidatesForListing(ctx context.Context, listingID snowflake.ID,
	candidateIDs []snowflake.ID) ([]ranking.Score, error) {

	args := m.Called(ctx, listingID, candidateIDs)
	scores, _ := args.Get(0).([]ranking.Score)
	return scores, args.Error(1)
}

type mockAiClient struct {
	mu       sync.Mutex
	requests []string
	response string
	err      error
}

func (m *mockAiClient) GenerateResponse(ctx context.Context, request string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, request)
	return m.response, m.err
}

type mockExpirer struct {
	mu     sync.Mutex
	calls  []time.Time
	result int64
	err    error
}

func (m *mockExpirer) Expire(ctx context.Context, now time.Time) (int64, error) {
	return m.record(now)
}

func (m *mockExpirer) ExpireRequests(ctx context.Context, now time.Time) (int64, error) {
	return m.record(now)
}

func (m *mockExpirer) record(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, now)
	return m.result, m.err
}

func (m *mockExpirer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
