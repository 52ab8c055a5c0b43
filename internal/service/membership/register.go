package membership

import (
	"google.golang.org/grpc"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/server"
)

const ServiceName = "guestmatch.membership.v1.MembershipService"

const (
	MethodJoinEvent        = "JoinEvent"
	MethodCheckEligibility = "CheckEligibility"
	MethodHasRole          = "HasRole"
	MethodCloseEvent       = "CloseEvent"
	MethodRegisterDevice   = "RegisterDevice"
)

// Registrar ties the Membership service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Membership service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	svc := NewService(r.appCtx)
	s.RegisterService(server.ServiceDesc(ServiceName,
		server.Unary(ServiceName, MethodJoinEvent, svc.JoinEvent),
		server.Unary(ServiceName, MethodCheckEligibility, svc.CheckEligibility),
		server.Unary(ServiceName, MethodHasRole, svc.HasRole),
		server.Unary(ServiceName, MethodCloseEvent, svc.CloseEvent),
		server.Unary(ServiceName, MethodRegisterDevice, svc.RegisterDevice),
	), svc)
}
