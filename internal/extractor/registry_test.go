package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-harvester/internal/harvest"
)

func TestBuildRegistersEverySourceType(t *testing.T) {
	t.Parallel()

	reg, err := Build(context.Background(), Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	for _, st := range harvest.AllSourceTypes() {
		e, ok := reg.Lookup(st)
		require.True(t, ok, "missing extractor for %s", st)
		require.Equal(t, st, e.Type())
	}
	require.Len(t, reg.Types(), len(harvest.AllSourceTypes()))
}

func TestRegistryLookupUnknown(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(NewFeed(harvest.SourceNewsFeed, nil, 0))
	_, ok := reg.Lookup(harvest.SourceForum)
	require.False(t, ok)
	require.Equal(t, []harvest.SourceType{harvest.SourceNewsFeed}, reg.Types())
}
