package syncerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemoteError_Transient(t *testing.T) {
	tests := []struct {
		name string
		err  *RemoteError
		want bool
	}{
		{"RateLimited", &RemoteError{StatusCode: 429}, true},
		{"ServerError", &RemoteError{StatusCode: 503}, true},
		{"Validation", &RemoteError{StatusCode: 400}, false},
		{"Permission", &RemoteError{StatusCode: 403}, false},
		{"Connection", &RemoteError{Err: errors.New("connection reset")}, true},
		{"Empty", &RemoteError{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Transient())
		})
	}
}

func TestIsTransient(t *testing.T) {
	wrapped := fmt.Errorf("update deal: %w", &RemoteError{System: "crm", StatusCode: 502})
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsTransient(&RemoteError{StatusCode: 422}))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: errors.New("refused")}))
}

func TestErrorIs(t *testing.T) {
	unavailable := &RemoteUnavailableError{System: "project", Op: "create", Attempts: 5, Err: &RemoteError{StatusCode: 429}}
	assert.ErrorIs(t, unavailable, ErrRemoteUnavailable)
	assert.ErrorIs(t, unavailable, ErrRateLimited)

	assert.ErrorIs(t, &MappingError{Field: "name"}, ErrMapping)
	assert.ErrorIs(t, NewStoreError("commit", errors.New("disk full")), ErrStoreUnavailable)
	assert.NoError(t, NewStoreError("commit", nil))
	assert.ErrorIs(t, &NotFoundError{Resource: "issue", ID: "x"}, ErrNotFound)
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &RemoteError{StatusCode: 429, RetryAfter: 3 * time.Second})
	assert.Equal(t, 3*time.Second, RetryAfter(err))
	assert.Zero(t, RetryAfter(errors.New("plain")))
}
