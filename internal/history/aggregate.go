// Package history turns raw value/timestamp sequences into the bounded,
// time-bucketed series the chart consumers read. Aggregation is a pure
// function recomputed from raw points on every call; the only state kept
// anywhere is the rolling raw-sample window in Series.
package history

import (
	"sort"
	"time"

	"github.com/gfiorelli/plantwatch/internal/model"
)

const (
	// BucketWidth is the fixed aggregation bucket size.
	BucketWidth = 5 * time.Minute
	// MaxBuckets bounds the series to a rolling window; older buckets are
	// silently dropped.
	MaxBuckets = 60
	// MaxRawSamples caps the raw points retained per plant slot.
	MaxRawSamples = 100
	// DebounceWindow is the quiet period coalescing bursts of live updates
	// into a single recomputation.
	DebounceWindow = 30 * time.Second
)

// Aggregate partitions points into fixed BucketWidth buckets keyed by
// floor(epochMillis/width)*width and averages each bucket. The output is
// sorted ascending by bucket start, holds at most MaxBuckets of the most
// recent buckets, and is sparse: buckets with no points are not
// materialized. Points with an unparsable timestamp are skipped.
func Aggregate(points []model.RawPoint) []model.AveragedDataPoint {
	type acc struct {
		sum   float64
		count int
	}
	widthMs := BucketWidth.Milliseconds()
	buckets := make(map[int64]*acc)

	for _, p := range points {
		t, err := time.Parse(time.RFC3339, p.Timestamp)
		if err != nil {
			continue
		}
		key := t.UnixMilli() / widthMs * widthMs
		a := buckets[key]
		if a == nil {
			a = &acc{}
			buckets[key] = a
		}
		a.sum += p.Value
		a.count++
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if len(keys) > MaxBuckets {
		keys = keys[len(keys)-MaxBuckets:]
	}

	out := make([]model.AveragedDataPoint, 0, len(keys))
	for _, k := range keys {
		a := buckets[k]
		out = append(out, model.AveragedDataPoint{
			Timestamp: time.UnixMilli(k).UTC(),
			Value:     a.sum / float64(a.count),
			Count:     a.count,
		})
	}
	return out
}
