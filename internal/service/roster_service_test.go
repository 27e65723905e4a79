package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-course-api/internal/models"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

type mockRosterRepo struct {
	roster []models.RosterEntry
	calls  int
}

func (m *mockRosterRepo) ListByOffering(ctx context.Context, offeringID string) ([]models.RosterEntry, error) {
	m.calls++
	return m.roster, nil
}

type mockRosterCache struct {
	entries map[string][]byte
	deleted []string
}

func newMockRosterCache() *mockRosterCache {
	return &mockRosterCache{entries: make(map[string][]byte)}
}

func (m *mockRosterCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockRosterCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mockRosterCache) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func TestRosterServiceListCachesResult(t *testing.T) {
	repo := &mockRosterRepo{roster: []models.RosterEntry{
		{Enrollment: models.Enrollment{StudentCode: "S100", OfferingID: testOfferingID}, Email: "ana@example.edu"},
	}}
	cache := newMockRosterCache()
	svc := NewRosterService(repo, testOfferingReader(), cache, time.Minute, nil)

	roster, err := svc.List(context.Background(), testOfferingID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, 1, repo.calls)

	// Second read is served from cache.
	roster, err = svc.List(context.Background(), testOfferingID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "S100", roster[0].StudentCode)
	assert.Equal(t, 1, repo.calls)
}

func TestRosterServiceListOfferingNotFound(t *testing.T) {
	svc := NewRosterService(&mockRosterRepo{}, testOfferingReader(), newMockRosterCache(), time.Minute, nil)

	_, err := svc.List(context.Background(), otherOffering)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceInvalidate(t *testing.T) {
	repo := &mockRosterRepo{roster: []models.RosterEntry{{Enrollment: models.Enrollment{StudentCode: "S100"}}}}
	cache := newMockRosterCache()
	svc := NewRosterService(repo, testOfferingReader(), cache, time.Minute, nil)

	_, err := svc.List(context.Background(), testOfferingID)
	require.NoError(t, err)

	svc.InvalidateRoster(context.Background(), testOfferingID)
	assert.Contains(t, cache.deleted, "roster:"+testOfferingID)

	// The next read goes back to the store.
	_, err = svc.List(context.Background(), testOfferingID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestRosterServiceListWithoutCache(t *testing.T) {
	repo := &mockRosterRepo{}
	svc := NewRosterService(repo, testOfferingReader(), nil, time.Minute, nil)

	_, err := svc.List(context.Background(), testOfferingID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
}
