package ratelimit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"citeground/internal/ratelimit"
)

func TestLimiter_InternalBackendEnforcesPerClientBucket(t *testing.T) {
	l := ratelimit.New("internal", ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))
}

func TestLimiter_ClientsHaveIndependentBuckets(t *testing.T) {
	l := ratelimit.New("internal", ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})

	assert.True(t, l.Allow("client-a"))
	assert.False(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-b"))
}

func TestLimiter_ExternalBackendAlwaysAllows(t *testing.T) {
	l := ratelimit.New("external", ratelimit.Config{RequestsPerSecond: 1, BurstSize: 1})

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("client-a"))
	}
}

func TestLimiter_DefaultsAppliedForZeroConfig(t *testing.T) {
	l := ratelimit.New("internal", ratelimit.Config{})

	assert.True(t, l.Allow("client-a"))
}
