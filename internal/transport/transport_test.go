package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	ta "github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiError(code int, desc string) error {
	return fmt.Errorf("telego: editMessageText: api: %w", &ta.Error{ErrorCode: code, Description: desc})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unchanged", apiError(400, "Bad Request: message is not modified: specified new message content and reply markup are exactly the same"), ErrUnchanged},
		{"rate limited", apiError(429, "Too Many Requests: retry after 5"), ErrTransient},
		{"server error", apiError(502, "Bad Gateway"), ErrTransient},
		{"message not found", apiError(400, "Bad Request: message to edit not found"), ErrNotFound},
		{"chat not found", apiError(400, "Bad Request: chat not found"), ErrNotFound},
		{"kicked", apiError(403, "Forbidden: bot was kicked from the supergroup chat"), ErrPermanent},
		{"bad request", apiError(400, "Bad Request: not enough rights to pin a message"), ErrPermanent},
		{"network", errors.New("dial tcp: connection reset by peer"), ErrTransient},
		{"timeout", context.DeadlineExceeded, ErrTransient},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestNewError(t *testing.T) {
	assert.NoError(t, NewError("op", 1, nil))

	cause := apiError(400, "Bad Request: message is not modified")
	err := NewError("edit text", -100, cause)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, int64(-100), te.ChatID)
	assert.Equal(t, "edit text", te.Op)
	assert.True(t, IsUnchanged(err))
	assert.ErrorIs(t, err, ErrUnchanged)
	assert.Equal(t, ErrUnchanged, KindOf(err))

	var apiErr *ta.Error
	assert.ErrorAs(t, err, &apiErr)

	// already classified errors are not wrapped twice
	assert.Same(t, err, NewError("other", 5, err))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, ErrPermanent, KindOf(errors.New("whatever")))
	assert.Equal(t, ErrNotFound, KindOf(fmt.Errorf("wrapped: %w", ErrNotFound)))
}
