package identity

import (
	"google.golang.org/grpc"

	"github.com/oggyb/fahrme/internal/app"
	"github.com/oggyb/fahrme/internal/rpc"
)

// Registrar ties the Identity service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Identity service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Identity service implementation to the gRPC server
func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	rpc.RegisterIdentityServer(s, NewIdentityService(r.appCtx))
}
