package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

func newTestRedis(t *testing.T, opts ...Option) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return NewFromClient(client, opts...), mr
}

func sampleEvaluation() engine.Evaluation {
	return engine.Evaluation{
		DecisionPath: engine.DecisionPath{
			Recommendations: []engine.Recommendation{{
				ID:       "hipaa-segmentation",
				Type:     engine.TypeRequirement,
				Priority: engine.PriorityCritical,
				Title:    "Segment clinical devices",
				RuleID:   "compliance-hipaa",
			}},
			Blockers: []engine.Blocker{{Code: "air-gap", Message: "offline updates"}},
		},
		CatalogVersion: "v1",
		Failures:       []engine.RuleFailure{},
	}
}

func TestRedisRoundTrip(t *testing.T) {
	store, mr := newTestRedis(t, WithTTL(time.Minute))
	ctx := context.Background()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.Set(ctx, "k", sampleEvaluation()))
	assert.True(t, mr.Exists("scoping:decision:k"))
	assert.Equal(t, time.Minute, mr.TTL("scoping:decision:k"))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, sampleEvaluation(), got)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisPrefixAndPing(t *testing.T) {
	store, mr := newTestRedis(t, WithPrefix("test:"))
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Set(context.Background(), "abc", sampleEvaluation()))
	assert.True(t, mr.Exists("test:abc"))
}

func TestRedisCorruptEntry(t *testing.T) {
	store, mr := newTestRedis(t)
	require.NoError(t, mr.Set("scoping:decision:bad", "{not json"))
	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestRedisUnavailable(t *testing.T) {
	store, mr := newTestRedis(t)
	mr.Close()
	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis("not-a-url://")
	assert.Error(t, err)

	store, err := NewRedis("redis://localhost:6379/2", WithTTL(0))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), store.ttl)
	require.NoError(t, store.Close())
}

func TestKeyDependsOnCatalogAndContext(t *testing.T) {
	c := engine.Context{Industry: "Healthcare", OrganizationSize: 10, SecurityLevel: engine.SecurityStandard}

	a, err := Key("sum-1", c)
	require.NoError(t, err)
	b, _ := Key("sum-1", c)
	assert.Equal(t, a, b)

	other, _ := Key("sum-2", c)
	assert.NotEqual(t, a, other)

	c.OrganizationSize = 11
	changed, _ := Key("sum-1", c)
	assert.NotEqual(t, a, changed)
}

func TestNop(t *testing.T) {
	var c DecisionCache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", sampleEvaluation()))
	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
}
