package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("s3cret", "guestmatch")
	token, err := v.Issue("user-1", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("s3cret", "guestmatch")

	other, _ := NewVerifier("different", "guestmatch").Issue("user-1", time.Hour)
	_, err := v.Verify(other)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	wrongIssuer, _ := NewVerifier("s3cret", "someone-else").Issue("user-1", time.Hour)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	expired, _ := v.Issue("user-1", time.Hour)
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	_, err = v.Verify("")
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	_, err = NewVerifier("", "").Verify("x.y.z")
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

func TestUnaryInterceptor(t *testing.T) {
	v := NewVerifier("s3cret", "")
	icpt := UnaryInterceptor(v, "/grpc.health.v1.Health/Check")

	var seen string
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = UserFrom(ctx)
		return "ok", nil
	}

	// public
	_, err := icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	require.NoError(t, err)

	// missing token
	_, err = icpt(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/guestmatch.swipe.v1.SwipeService/RecordSwipe"}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	token, _ := v.Issue("user-9", time.Minute)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	_, err = icpt(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/guestmatch.swipe.v1.SwipeService/RecordSwipe"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "user-9", seen)
}

func TestUserFrom(t *testing.T) {
	_, err := UserFrom(context.Background())
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	id, err := UserFrom(WithUser(context.Background(), "u"))
	require.NoError(t, err)
	assert.Equal(t, "u", id)
}
