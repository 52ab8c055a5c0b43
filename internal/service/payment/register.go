package payment

import (
	"google.golang.org/grpc"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/server"
)

const ServiceName = "guestmatch.payment.v1.PaymentService"

const MethodVerifyPayment = "VerifyPayment"

// Registrar ties the Payment service into the gRPC server
type Registrar struct {
	appCtx   *app.AppContext
	verifier *Verifier
}

func NewRegistrar(appCtx *app.AppContext, verifier *Verifier) *Registrar {
	return &Registrar{appCtx: appCtx, verifier: verifier}
}

func (r *Registrar) Register(s *grpc.Server) {
	svc := NewService(r.appCtx, r.verifier)
	s.RegisterService(server.ServiceDesc(ServiceName,
		server.Unary(ServiceName, MethodVerifyPayment, svc.VerifyPayment),
	), svc)
}
