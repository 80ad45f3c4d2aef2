package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gfiorelli/plantwatch/internal/model"
)

func TestAggregateSameBucket(t *testing.T) {
	points := []model.RawPoint{
		{Timestamp: "2024-01-01T00:00:10Z", Value: 10},
		{Timestamp: "2024-01-01T00:01:00Z", Value: 20},
	}
	out := Aggregate(points)

	require.Len(t, out, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out[0].Timestamp)
	assert.Equal(t, 15.0, out[0].Value)
	assert.Equal(t, 2, out[0].Count)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.Empty(t, Aggregate([]model.RawPoint{}))
}

func TestAggregateSingletonBucket(t *testing.T) {
	out := Aggregate([]model.RawPoint{{Timestamp: "2024-01-01T00:07:00Z", Value: 33}})
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Count)
	assert.Equal(t, 33.0, out[0].Value)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC), out[0].Timestamp)
}

func TestAggregateSortedSparseAndCapped(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var points []model.RawPoint
	// 70 buckets, delivered newest-first, with a gap every 7th bucket
	for i := 69; i >= 0; i-- {
		if i%7 == 0 {
			continue
		}
		points = append(points, model.RawPoint{
			Timestamp: base.Add(time.Duration(i) * BucketWidth).Format(time.RFC3339),
			Value:     float64(i),
		})
	}
	out := Aggregate(points)

	require.LessOrEqual(t, len(out), MaxBuckets)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i].Timestamp.After(out[i-1].Timestamp), "output must be ascending")
	}
	// the most recent bucket survives the cap, the oldest ones are dropped
	assert.Equal(t, base.Add(69*BucketWidth), out[len(out)-1].Timestamp)
}

func TestAggregateCountPerBucket(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var points []model.RawPoint
	for b := 0; b < 3; b++ {
		for i := 0; i <= b; i++ {
			points = append(points, model.RawPoint{
				Timestamp: base.Add(time.Duration(b)*BucketWidth + time.Duration(i)*time.Second).Format(time.RFC3339),
				Value:     1,
			})
		}
	}
	out := Aggregate(points)
	require.Len(t, out, 3)
	for b, p := range out {
		assert.Equal(t, b+1, p.Count, "bucket %d", b)
	}
}

func TestAggregateSkipsBadTimestamps(t *testing.T) {
	points := []model.RawPoint{
		{Timestamp: "not-a-time", Value: 99},
		{Timestamp: "2024-01-01T00:00:10Z", Value: 10},
		{Timestamp: "", Value: 77},
	}
	out := Aggregate(points)
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, out[0].Value)
	assert.Equal(t, 1, out[0].Count)
}

func TestAggregateIdempotent(t *testing.T) {
	var points []model.RawPoint
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		points = append(points, model.RawPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Value:     float64(i * i % 37),
		})
	}
	first := Aggregate(points)
	second := Aggregate(points)
	assert.Equal(t, first, second)
}

func TestAggregateBucketKeyFloors(t *testing.T) {
	// every instant within one width lands on the same floored key
	for _, sec := range []int{0, 1, 59, 150, 299} {
		ts := fmt.Sprintf("2024-01-01T00:%02d:%02dZ", sec/60, sec%60)
		out := Aggregate([]model.RawPoint{{Timestamp: ts, Value: 1}})
		require.Len(t, out, 1)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out[0].Timestamp, "sec=%d", sec)
	}
}
