package chat

import (
	"google.golang.org/grpc"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/server"
)

const ServiceName = "guestmatch.chat.v1.ChatService"

const (
	MethodSendMessage  = "SendMessage"
	MethodListMessages = "ListMessages"
)

// Registrar ties the Chat service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s *grpc.Server) {
	svc := NewService(r.appCtx)
	s.RegisterService(server.ServiceDesc(ServiceName,
		server.Unary(ServiceName, MethodSendMessage, svc.SendMessage),
		server.Unary(ServiceName, MethodListMessages, svc.ListMessages),
	), svc)
}
