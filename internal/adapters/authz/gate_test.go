package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"hotel_pricing/internal/adapters/authz"
	"hotel_pricing/internal/domain"
)

func TestParseKeys(t *testing.T) {
	keys, err := authz.ParseKeys(" k-admin-1:Admin , k-view-2:viewer,")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k-admin-1": "admin", "k-view-2": "viewer"}, keys)

	for _, bad := range []string{"nokey", "k1:", ":admin", "k1:a,k1:b"} {
		_, err := authz.ParseKeys(bad)
		require.Error(t, err, bad)
	}

	keys, err = authz.ParseKeys("")
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestGate_IdentifyAndAllow(t *testing.T) {
	g := authz.New(map[string]string{"k-admin-1": "admin", "k-view-2": "viewer"}, []string{"Admin", " manager"})
	ctx := context.Background()

	admin, ok := g.Identify("k-admin-1")
	require.True(t, ok)
	require.Equal(t, "admin", admin.Role)
	require.NotContains(t, admin.Name, "admin-1", "principal names never carry the full key")

	viewer, ok := g.Identify(" k-view-2 ")
	require.True(t, ok)

	_, ok = g.Identify("nope")
	require.False(t, ok)

	require.True(t, g.Allow(ctx, admin, domain.ActionImportPricing))
	require.True(t, g.Allow(ctx, admin, domain.ActionReadPricing))
	require.False(t, g.Allow(ctx, viewer, domain.ActionImportPricing))
	require.True(t, g.Allow(ctx, viewer, domain.ActionReadPricing))
	require.False(t, g.Allow(ctx, domain.Principal{}, domain.ActionReadPricing))
	require.False(t, g.Allow(ctx, admin, domain.Action("pricing:delete")))
}
