package mcq

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		msg    string
		want   InferenceKind
	}{
		{"429", 429, "Too Many Requests", KindRateLimited},
		{"quota 403", 403, "Quota exceeded for quota metric", KindRateLimited},
		{"rate limit text", 400, "rate limit reached", KindRateLimited},
		{"500", 500, "internal", KindTransient},
		{"503", 503, "unavailable", KindTransient},
		{"401", 401, "API key not valid", KindFatal},
		{"403", 403, "permission denied", KindFatal},
		{"no status", 0, "connection reset", KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyStatus(tc.status, tc.msg))
		})
	}
}

func TestRetryableThroughWrapping(t *testing.T) {
	fatal := fmt.Errorf("call: %w", &InferenceError{Kind: KindFatal, Status: 401})
	assert.False(t, IsRetryable(fatal))
	assert.False(t, IsRateLimited(fatal))

	limited := &StageError{Stage: StageInference, Ordinal: 2, Err: &InferenceError{Kind: KindRateLimited, Status: 429}}
	assert.True(t, IsRetryable(limited))
	assert.True(t, IsRateLimited(limited))

	assert.True(t, IsRetryable(errors.New("dial tcp: timeout")))
	assert.False(t, IsRetryable(nil))
}

func TestAnswerIndex(t *testing.T) {
	assert.Equal(t, 1, Answer(2).Index())
	assert.True(t, Answer(4).Valid())
	assert.False(t, Answer(5).Valid())
	assert.False(t, Answer(0).Valid())
}

func TestInferenceErrorMessage(t *testing.T) {
	err := &InferenceError{Kind: KindRateLimited, Status: 429, Message: "slow down"}
	assert.Equal(t, "inference rate_limited (429): slow down", err.Error())
}
