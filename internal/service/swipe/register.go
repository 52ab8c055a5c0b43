package swipe

import (
	"google.golang.org/grpc"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/server"
)

const ServiceName = "guestmatch.swipe.v1.SwipeService"

const (
	MethodRecordSwipe   = "RecordSwipe"
	MethodRetractSwipe  = "RetractSwipe"
	MethodListMatches   = "ListMatches"
	MethodListLikedYou  = "ListLikedYou"
	MethodCountLikedYou = "CountLikedYou"
)

// ThrottledMethods are the write endpoints behind the per-user rate limiter.
func ThrottledMethods() []string {
	return []string{
		server.FullMethod(ServiceName, MethodRecordSwipe),
		server.FullMethod(ServiceName, MethodRetractSwipe),
	}
}

// Registrar ties the Swipe service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Swipe service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	svc := NewService(r.appCtx)
	s.RegisterService(server.ServiceDesc(ServiceName,
		server.Unary(ServiceName, MethodRecordSwipe, svc.RecordSwipe),
		server.Unary(ServiceName, MethodRetractSwipe, svc.RetractSwipe),
		server.Unary(ServiceName, MethodListMatches, svc.ListMatches),
		server.Unary(ServiceName, MethodListLikedYou, svc.ListLikedYou),
		server.Unary(ServiceName, MethodCountLikedYou, svc.CountLikedYou),
	), svc)
}
