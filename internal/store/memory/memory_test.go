package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-ticker/internal/common"
	"go-ticker/pkg/models"
)

func tick(price int64, ts int64) models.Tick {
	return models.Tick{Price: decimal.NewFromInt(price), Timestamp: ts}
}

func TestLastOnEmptyStore(t *testing.T) {
	_, err := New().Last(context.Background())
	assert.ErrorIs(t, err, common.ErrEmptySeries)
}

func TestAppendAssignsIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	id1, err := s.Append(ctx, tick(1, 10))
	require.NoError(t, err)
	id2, err := s.Append(ctx, tick(2, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id1)
	assert.Equal(t, int64(2), id2)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.True(t, last.Price.Equal(decimal.NewFromInt(2)))
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Append(ctx, tick(1, 100))
	require.NoError(t, err)

	_, err = s.Append(ctx, tick(1, 99))
	assert.ErrorIs(t, err, common.ErrInvalidTick)

	err = s.AppendBatch(ctx, []models.Tick{tick(1, 200), tick(1, 150)})
	assert.ErrorIs(t, err, common.ErrInvalidTick)
	assert.Equal(t, 1, s.Len(), "failed batch must not be applied")
}

func TestRangeInclusiveAndLimited(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AppendBatch(ctx, []models.Tick{tick(1, 0), tick(2, 1000), tick(3, 2000), tick(4, 3000), tick(5, 4000)}))

	got, err := s.Range(ctx, 1000, 3000, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, int64(3000), got[2].Timestamp)

	got, err = s.Range(ctx, 0, 4000, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3000), got[0].Timestamp)
	assert.Equal(t, int64(4000), got[1].Timestamp)

	got, err = s.Range(ctx, 5000, 6000, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s := New()
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(context.Background()), common.ErrStoreUnavailable)
	_, err := s.Append(context.Background(), tick(1, 1))
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestCheckDoesNotAppend(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Append(ctx, tick(1, 100))
	require.NoError(t, err)

	assert.NoError(t, s.Check([]models.Tick{tick(2, 100), tick(3, 200)}))
	assert.ErrorIs(t, s.Check([]models.Tick{tick(2, 300), tick(3, 200)}), common.ErrInvalidTick)
	assert.ErrorIs(t, s.Check([]models.Tick{tick(-1, 300)}), common.ErrInvalidTick)
	assert.Equal(t, 1, s.Len())
}
