package policy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage"
	"github.com/sage-x-project/secretcore/pkg/storage/memstore"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	store := memstore.New()

	ctx := context.Background()
	keys, err := seal.NewManager(ctx, memstore.New(), logger.Default())
	require.NoError(t, err)
	shares, err := keys.Initialize(ctx, 3, 2)
	require.NoError(t, err)
	_, err = keys.SubmitShare(ctx, shares[0])
	require.NoError(t, err)
	_, err = keys.SubmitShare(ctx, shares[1])
	require.NoError(t, err)

	auditLog := audit.NewLog(store, keys, logger.Default(), 0, 0)
	return NewEngine(store, auditLog, logger.Default())
}

func TestEvaluateNoPoliciesDeniesByDefault(t *testing.T) {
	e := newEngine(t)
	d, err := e.Evaluate(context.Background(), nil, "secret/data/foo", "read", EvalContext{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestEvaluateAllowMatch(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Put(ctx, &storage.Policy{
		Name: "readers", Effect: EffectAllow,
		Rules: []storage.PolicyRule{{Path: "secret/data/**", Capabilities: []string{"read"}}},
	}))

	d, err := e.Evaluate(ctx, []string{"readers"}, "secret/data/foo/bar", "read", EvalContext{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "readers", d.PolicyName)
}

func TestEvaluateDenyWinsOverAllow(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Put(ctx, &storage.Policy{
		Name: "allow-all", Effect: EffectAllow,
		Rules: []storage.PolicyRule{{Path: "secret/data/**", Capabilities: []string{"read", "delete"}}},
	}))
	require.NoError(t, e.Put(ctx, &storage.Policy{
		Name: "deny-delete", Effect: EffectDeny,
		Rules: []storage.PolicyRule{{Path: "secret/data/**", Capabilities: []string{"delete"}}},
	}))

	d, err := e.Evaluate(ctx, []string{"allow-all", "deny-delete"}, "secret/data/foo", "delete", EvalContext{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "deny-delete", d.PolicyName)

	d, err = e.Evaluate(ctx, []string{"allow-all", "deny-delete"}, "secret/data/foo", "read", EvalContext{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateSegmentGlobDoesNotCrossBoundaries(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Put(ctx, &storage.Policy{
		Name: "single-segment", Effect: EffectAllow,
		Rules: []storage.PolicyRule{{Path: "secret/*/config", Capabilities: []string{"read"}}},
	}))

	d, err := e.Evaluate(ctx, []string{"single-segment"}, "secret/app1/config", "read", EvalContext{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.Evaluate(ctx, []string{"single-segment"}, "secret/app1/nested/config", "read", EvalContext{})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestEvaluateConditionSourceCIDR(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	maxTTL := 5 * time.Minute
	require.NoError(t, e.Put(ctx, &storage.Policy{
		Name: "office-only", Effect: EffectAllow,
		Rules: []storage.PolicyRule{{
			Path: "secret/data/**", Capabilities: []string{"read"},
			Conditions: &storage.PolicyConditions{SourceCIDRs: []string{"10.0.0.0/8"}, MaxTTL: &maxTTL},
		}},
	}))

	d, err := e.Evaluate(ctx, []string{"office-only"}, "secret/data/foo", "read", EvalContext{SourceIP: net.ParseIP("10.1.2.3"), RequestedTTL: time.Minute})
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = e.Evaluate(ctx, []string{"office-only"}, "secret/data/foo", "read", EvalContext{SourceIP: net.ParseIP("8.8.8.8"), RequestedTTL: time.Minute})
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = e.Evaluate(ctx, []string{"office-only"}, "secret/data/foo", "read", EvalContext{SourceIP: net.ParseIP("10.1.2.3"), RequestedTTL: time.Hour})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestTimeOfDayWindowWraparound(t *testing.T) {
	night := "22:00"
	morning := "06:00"
	c := &storage.PolicyConditions{TimeOfDayStart: &night, TimeOfDayEnd: &morning}

	late := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	assert.True(t, conditionsSatisfied(c, EvalContext{Now: late}))

	midday := time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)
	assert.False(t, conditionsSatisfied(c, EvalContext{Now: midday}))
}

func TestPutRejectsInvalidEffect(t *testing.T) {
	e := newEngine(t)
	err := e.Put(context.Background(), &storage.Policy{Name: "bad", Effect: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidEffect)
}
