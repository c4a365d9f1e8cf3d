package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperationMetrics(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 100; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%10 != 0, i%10 == 0 && i <= 50)
	}

	assert.Equal(t, int64(100), om.Total)
	assert.Equal(t, int64(90), om.Success)
	assert.Equal(t, int64(5), om.Conflict)
	assert.Equal(t, int64(5), om.Error)

	avg, lo, hi, p50, p95, p99 := om.Stats()
	assert.Equal(t, 50500*time.Microsecond, avg)
	assert.Equal(t, time.Millisecond, lo)
	assert.Equal(t, 100*time.Millisecond, hi)
	assert.Equal(t, 51*time.Millisecond, p50)
	assert.Equal(t, 96*time.Millisecond, p95)
	assert.Equal(t, 100*time.Millisecond, p99)
}

func TestOperationMetrics_Empty(t *testing.T) {
	var om OperationMetrics
	avg, lo, hi, p50, p95, p99 := om.Stats()
	for _, d := range []time.Duration{avg, lo, hi, p50, p95, p99} {
		assert.Zero(t, d)
	}
}

func TestSimConfig_Normalize(t *testing.T) {
	cfg := SimConfig{BookingRatio: 2, CompleteRatio: 1, CancelRatio: 0, ReadRatio: 1}
	cfg.normalize()
	assert.InDelta(t, 0.5, cfg.BookingRatio, 1e-9)
	assert.InDelta(t, 0.25, cfg.CompleteRatio, 1e-9)
	assert.InDelta(t, 0.25, cfg.ReadRatio, 1e-9)
}
