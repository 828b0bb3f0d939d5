package toolerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsKind(t *testing.T) {
	err := fmt.Errorf("complete task: %w", New(NotFound, "task %d not found", 5))

	assert.True(t, errors.Is(err, NotFound))
	assert.False(t, errors.Is(err, NotConfigured))
	assert.Equal(t, NotFound, KindOf(err))
}

func TestMissingNamesField(t *testing.T) {
	err := Missing("task_id")

	assert.Equal(t, MissingParameter, err.Kind)
	assert.Equal(t, "task_id", FieldOf(err))
	assert.Contains(t, err.Error(), "task_id")
	assert.True(t, err.Kind.CallerCorrectable())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"bare kind", NotConfigured, NotConfigured},
		{"wrapped error", fmt.Errorf("x: %w", Invalid("to", "bad address")), ValidationError},
		{"plain error", errors.New("connection refused"), CapabilityUnavailable},
		{"timeout", Timeout(context.DeadlineExceeded), CapabilityUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	original := Invalid("due_date", "could not understand %q", "someday")

	parsed := Parse(Marshal(original))

	require.NotNil(t, parsed)
	assert.Equal(t, ValidationError, parsed.Kind)
	assert.Equal(t, "due_date", parsed.Field)
	assert.Equal(t, `could not understand "someday"`, parsed.Message)
}

func TestParseNonPayload(t *testing.T) {
	parsed := Parse("internal server error")

	assert.Equal(t, CapabilityUnavailable, parsed.Kind)
	assert.Equal(t, "internal server error", parsed.Message)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("http 500")
	err := Wrap(DeliveryFailed, cause, "provider rejected message")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, DeliveryFailed)
}
