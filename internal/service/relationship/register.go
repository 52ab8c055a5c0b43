package relationship

import (
	"google.golang.org/grpc"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/server"
)

const ServiceName = "guestmatch.relationship.v1.RelationshipService"

const (
	MethodBlock            = "Block"
	MethodUnmatch          = "Unmatch"
	MethodReport           = "Report"
	MethodListEventReports = "ListEventReports"
	MethodReviewReport     = "ReviewReport"
)

// Registrar ties the Relationship service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Relationship service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	svc := NewService(r.appCtx)
	s.RegisterService(server.ServiceDesc(ServiceName,
		server.Unary(ServiceName, MethodBlock, svc.Block),
		server.Unary(ServiceName, MethodUnmatch, svc.Unmatch),
		server.Unary(ServiceName, MethodReport, svc.Report),
		server.Unary(ServiceName, MethodListEventReports, svc.ListEventReports),
		server.Unary(ServiceName, MethodReviewReport, svc.ReviewReport),
	), svc)
}
