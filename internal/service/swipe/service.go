package swipe

import (
	"context"
	"strings"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/auth"
	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/repository"
	"github.com/oggyb/guestmatch/internal/service/membership"
)

// pageSize bounds every list response.
const pageSize = 20

type RecordSwipeRequest struct {
	EventID      string `json:"event_id"`
	TargetUserID string `json:"target_user_id"`
	Direction    string `json:"direction"`
}

type RecordSwipeResponse struct {
	Matched bool   `json:"matched"`
	MatchID string `json:"match_id,omitempty"`
}

type RetractSwipeRequest struct {
	EventID      string `json:"event_id"`
	TargetUserID string `json:"target_user_id"`
}

type RetractSwipeResponse struct {
	Retracted bool `json:"retracted"`
}

type EventRequest struct {
	EventID string `json:"event_id"`
}

type MatchView struct {
	MatchID       string `json:"match_id"`
	UserID        string `json:"user_id"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

type ListMatchesResponse struct {
	Matches []MatchView `json:"matches"`
}

type ListLikedYouRequest struct {
	EventID         string `json:"event_id"`
	PaginationToken string `json:"pagination_token,omitempty"`
	// NewOnly drops guests the caller already liked back.
	NewOnly bool `json:"new_only,omitempty"`
}

type Liker struct {
	ActorID       string `json:"actor_id"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

type ListLikedYouResponse struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken *string `json:"next_pagination_token,omitempty"`
}

type CountLikedYouResponse struct {
	Count uint64 `json:"count"`
}

// Service implements the Swipe gRPC API.
// It contains the business logic on top of repository and cache layers.
type Service struct {
	appCtx     *app.AppContext
	swipeRepo  *repository.SwipeRepository
	matchRepo  *repository.MatchRepository
	memberRepo *repository.MembershipRepository
	gate       *membership.Gate
}

// NewService creates a new Swipe service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	memberRepo := repository.NewMembershipRepository(appCtx.DB)
	return &Service{
		appCtx:     appCtx,
		swipeRepo:  repository.NewSwipeRepository(appCtx.DB),
		matchRepo:  repository.NewMatchRepository(appCtx.DB),
		memberRepo: memberRepo,
		gate:       membership.NewGate(memberRepo),
	}
}

// RecordSwipe stores the caller's like or pass on another guest.
//
// Behavior:
//   - Caller must pass the membership gate; target must attend the event.
//   - Same direction again is a no-op; the opposite direction replaces.
//   - A right swipe answering the target's right swipe creates the match.
//   - New likes notify the target; a new match notifies both guests.
//
// Example:
//
//	svc.RecordSwipe(ctx, &RecordSwipeRequest{EventID: "e1", TargetUserID: "u2", Direction: "right"})
func (s *Service) RecordSwipe(ctx context.Context, req *RecordSwipeRequest) (*RecordSwipeResponse, error) {
	actorID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Debug("RecordSwipe called", "event_id", req.EventID, "direction", req.Direction)

	direction := strings.ToLower(strings.TrimSpace(req.Direction))
	if direction != db.DirectionLeft && direction != db.DirectionRight {
		return nil, svcErr.InvalidArgument("direction must be left or right")
	}
	if req.TargetUserID == "" {
		return nil, svcErr.InvalidArgument("target_user_id is required")
	}
	if req.TargetUserID == actorID {
		return nil, svcErr.InvalidArgument("cannot swipe on yourself")
	}

	if _, err := s.gate.Check(ctx, actorID, req.EventID); err != nil {
		return nil, s.fail("Gate", err)
	}
	if err := s.gate.CheckTarget(ctx, req.TargetUserID, req.EventID); err != nil {
		return nil, s.fail("CheckTarget", err)
	}

	res, err := s.swipeRepo.RecordSwipe(ctx, actorID, req.TargetUserID, req.EventID, direction)
	if err != nil {
		return nil, s.fail("RecordSwipe", err)
	}

	if res.Changed {
		// a like changes the target's count, a pass can hide the target from the actor's list
		s.invalidateCounts(ctx, req.EventID, req.TargetUserID, actorID)
		if direction == db.DirectionRight {
			s.appCtx.Notifier.SendLikeNotification(req.TargetUserID, req.EventID)
		}
	}
	if res.MatchCreated {
		data := map[string]string{"match_id": res.MatchID}
		s.appCtx.Notifier.Go(db.NotifyMatch, actorID, req.EventID, data)
		s.appCtx.Notifier.Go(db.NotifyMatch, req.TargetUserID, req.EventID, data)
	}

	s.appCtx.Logger.Debug("RecordSwipe result", "changed", res.Changed, "matched", res.Matched)
	return &RecordSwipeResponse{Matched: res.Matched, MatchID: res.MatchID}, nil
}

// RetractSwipe removes the caller's like. Matched pairs must unmatch instead.
func (s *Service) RetractSwipe(ctx context.Context, req *RetractSwipeRequest) (*RetractSwipeResponse, error) {
	actorID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.TargetUserID == "" || req.TargetUserID == actorID {
		return nil, svcErr.InvalidArgument("target_user_id must be another guest")
	}
	if _, err := s.gate.Check(ctx, actorID, req.EventID); err != nil {
		return nil, s.fail("Gate", err)
	}

	removed, err := s.swipeRepo.RetractSwipe(ctx, actorID, req.TargetUserID, req.EventID)
	if err != nil {
		return nil, s.fail("RetractSwipe", err)
	}
	if removed {
		s.invalidateCounts(ctx, req.EventID, req.TargetUserID)
	}
	return &RetractSwipeResponse{Retracted: removed}, nil
}

// ListMatches returns the caller's active matches in the event. Closed
// events stay readable.
func (s *Service) ListMatches(ctx context.Context, req *EventRequest) (*ListMatchesResponse, error) {
	userID, err := s.attendee(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	matches, err := s.matchRepo.ListActiveForUser(ctx, req.EventID, userID)
	if err != nil {
		return nil, s.fail("ListActiveForUser", err)
	}

	resp := &ListMatchesResponse{Matches: []MatchView{}}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, MatchView{
			MatchID:       m.ID,
			UserID:        m.Other(userID),
			UnixTimestamp: uint64(m.CreatedAt.UnixMilli()),
		})
	}
	return resp, nil
}

// ListLikedYou returns guests who liked the caller and whom the caller has
// not passed, newest first, with cursor-based pagination.
func (s *Service) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	userID, err := s.attendee(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListLikedYou called", "event_id", req.EventID, "new_only", req.NewOnly)

	swipes, nextToken, err := s.swipeRepo.GetLikers(ctx, userID, req.EventID, req.NewOnly, req.PaginationToken, pageSize)
	if err != nil {
		return nil, s.fail("GetLikers", err)
	}

	resp := &ListLikedYouResponse{Likers: []Liker{}, NextPaginationToken: nextToken}
	for _, sw := range swipes {
		resp.Likers = append(resp.Likers, Liker{
			ActorID:       sw.ActorID,
			UnixTimestamp: uint64(sw.UpdatedAt.UnixMilli()),
		})
	}
	return resp, nil
}

// CountLikedYou returns how many guests liked the caller in the event.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:eventID:userID), refreshing its TTL.
//  2. On a miss or Redis error, falls back to DB via repository.CountLikers.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, req *EventRequest) (*CountLikedYouResponse, error) {
	userID, err := s.attendee(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	cached, found, err := s.appCtx.RedisCache.GetLikeCount(ctx, req.EventID, userID)
	if err != nil {
		s.appCtx.Logger.Warn("like count cache read failed", "err", err)
	}
	if found {
		return &CountLikedYouResponse{Count: uint64(cached)}, nil
	}

	count, err := s.swipeRepo.CountLikers(ctx, userID, req.EventID)
	if err != nil {
		return nil, s.fail("CountLikers", err)
	}
	if err := s.appCtx.RedisCache.UpdateLikeCount(ctx, req.EventID, userID, count); err != nil {
		s.appCtx.Logger.Warn("like count cache write failed", "err", err)
	}
	return &CountLikedYouResponse{Count: uint64(count)}, nil
}

// attendee returns the caller if they are a guest of eventID.
func (s *Service) attendee(ctx context.Context, eventID string) (string, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return "", svcErr.Map(err)
	}
	if _, err := s.memberRepo.GetEvent(ctx, eventID); err != nil {
		return "", s.fail("GetEvent", err)
	}
	ok, err := s.memberRepo.IsAttendee(ctx, eventID, userID)
	if err != nil {
		return "", s.fail("IsAttendee", err)
	}
	if !ok {
		return "", svcErr.Map(svcErr.Unauthorized("You're not a guest of this event."))
	}
	return userID, nil
}

func (s *Service) invalidateCounts(ctx context.Context, eventID string, userIDs ...string) {
	if err := s.appCtx.RedisCache.InvalidateLikeCounts(ctx, eventID, userIDs...); err != nil {
		s.appCtx.Logger.Warn("like count invalidation failed", "err", err)
	}
}

// fail logs errors outside the taxonomy before mapping them.
func (s *Service) fail(op string, err error) error {
	if !svcErr.IsKnown(err) {
		s.appCtx.Logger.Error(op+" failed", "err", err)
	}
	return svcErr.Map(err)
}
