package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

func TestMap_Codes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", svcErr.Validation("reason is required"), codes.InvalidArgument},
		{"unauthorized", fmt.Errorf("block: %w", svcErr.ErrUnauthorized), codes.PermissionDenied},
		{"record not found", gorm.ErrRecordNotFound, codes.NotFound},
		{"invalid target", svcErr.InvalidTarget("blocked"), codes.FailedPrecondition},
		{"profile", svcErr.ErrProfileIncomplete, codes.FailedPrecondition},
		{"conflict", svcErr.Conflict("in progress"), codes.Aborted},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"transient", svcErr.ErrTransient, codes.Unavailable},
		{"unknown", errors.New("pq: relation does not exist"), codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(svcErr.Map(tc.err))
			assert.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
		})
	}
}

func TestMap_NeverLeaksBackendText(t *testing.T) {
	err := svcErr.Map(errors.New("ERROR: duplicate key value violates unique constraint \"blocks_pkey\""))
	st, _ := status.FromError(err)
	assert.NotContains(t, st.Message(), "duplicate key")
	assert.Equal(t, "Something went wrong. Please try again.", st.Message())
}

func TestMap_PassesStatusThrough(t *testing.T) {
	in := status.Error(codes.ResourceExhausted, "slow down")
	assert.Equal(t, in, svcErr.Map(in))
	assert.Nil(t, svcErr.Map(nil))
}

func TestUserMessage_UsesDetail(t *testing.T) {
	err := fmt.Errorf("wrap: %w", svcErr.Validation("body must not be empty"))
	assert.Equal(t, "body must not be empty", svcErr.UserMessage(err))
	assert.True(t, errors.Is(err, svcErr.ErrValidation))
}

func TestIsKnown(t *testing.T) {
	assert.True(t, svcErr.IsKnown(svcErr.ErrNotFound))
	assert.False(t, svcErr.IsKnown(errors.New("boom")))
}
