package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/auth"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/repository"
	"github.com/oggyb/guestmatch/internal/service/membership"
)

const (
	maxBodyLen = 2000
	pageSize   = 50
)

type SendMessageRequest struct {
	MatchID string `json:"match_id"`
	Body    string `json:"body"`
}

type MessageView struct {
	MessageID     string `json:"message_id"`
	SenderID      string `json:"sender_id"`
	Body          string `json:"body"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

type ListMessagesRequest struct {
	MatchID         string `json:"match_id"`
	PaginationToken string `json:"pagination_token,omitempty"`
}

type ListMessagesResponse struct {
	Messages            []MessageView `json:"messages"`
	NextPaginationToken *string       `json:"next_pagination_token,omitempty"`
}

// Service implements the Chat gRPC API. Only the two guests of an active,
// unblocked match may read or write, and only with a complete profile.
// Writing also needs the event to be open.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
	gate        *membership.Gate
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		gate:        membership.NewGate(repository.NewMembershipRepository(appCtx.DB)),
	}
}

func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (*MessageView, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, svcErr.Map(svcErr.Validation("Message can't be empty."))
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return nil, svcErr.Map(svcErr.Validation("Message is too long."))
	}

	match, err := s.matchRepo.ChatAccess(ctx, req.MatchID, userID)
	if err != nil {
		return nil, s.fail("ChatAccess", err)
	}
	if _, err := s.gate.Check(ctx, userID, match.EventID); err != nil {
		return nil, s.fail("SendMessage", err)
	}

	m, err := s.messageRepo.Create(ctx, req.MatchID, userID, body)
	if err != nil {
		return nil, s.fail("CreateMessage", err)
	}
	return &MessageView{
		MessageID:     m.ID,
		SenderID:      m.SenderID,
		Body:          m.Body,
		UnixTimestamp: uint64(m.CreatedAt.UnixMilli()),
	}, nil
}

// ListMessages returns the conversation newest first.
func (s *Service) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	match, err := s.matchRepo.ChatAccess(ctx, req.MatchID, userID)
	if err != nil {
		return nil, s.fail("ChatAccess", err)
	}
	if _, err := s.gate.CheckMember(ctx, userID, match.EventID); err != nil {
		return nil, s.fail("ListMessages", err)
	}

	messages, next, err := s.messageRepo.List(ctx, req.MatchID, req.PaginationToken, pageSize)
	if err != nil {
		return nil, s.fail("ListMessages", err)
	}

	resp := &ListMessagesResponse{Messages: []MessageView{}, NextPaginationToken: next}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, MessageView{
			MessageID:     m.ID,
			SenderID:      m.SenderID,
			Body:          m.Body,
			UnixTimestamp: uint64(m.CreatedAt.UnixMilli()),
		})
	}
	return resp, nil
}

// fail logs errors outside the taxonomy before mapping them.
func (s *Service) fail(op string, err error) error {
	if !svcErr.IsKnown(err) {
		s.appCtx.Logger.Error(op+" failed", "err", err)
	}
	return svcErr.Map(err)
}
