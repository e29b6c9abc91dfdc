package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	tb := NewTokenBucket(3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "request %d should be allowed", i+1)
	}
	assert.False(t, tb.Allow(), "bucket should be empty")
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, tb.Allow(), "bucket should refill after the period")
}

func TestTokenBucketWait(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)
	tb.Wait()

	start := time.Now()
	tb.Wait()
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
	l.Wait()
	l.Reset()
}
