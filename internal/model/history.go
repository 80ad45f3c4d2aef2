package model

import "time"

// RawPoint is one value/timestamp pair as delivered by the gateway.
// The timestamp stays textual until aggregation: points that fail to
// parse are skipped there, not rejected here.
type RawPoint struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// AveragedDataPoint is one fixed-width bucket of averaged samples.
// Never mutated after construction.
type AveragedDataPoint struct {
	Timestamp time.Time `json:"timestamp"` // bucket start
	Value     float64   `json:"value"`
	Count     int       `json:"count"` // samples in the bucket, >= 1
}
