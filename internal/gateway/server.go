// Package gateway mounts the REST and realtime surfaces on one mux.
package gateway

import (
	"net/http"

	"github.com/syntrixbase/daybook/internal/gateway/realtime"
	"github.com/syntrixbase/daybook/internal/gateway/rest"
)

// Registrar receives the gateway's routes, e.g. server.Service.
type Registrar interface {
	RegisterHTTPHandler(pattern string, handler http.Handler)
}

type Gateway struct {
	mux *http.ServeMux
}

// New builds the route table. A nil realtime server leaves /realtime/ws
// unmounted.
func New(api *rest.Handler, rt *realtime.Server) *Gateway {
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	if rt != nil {
		rt.RegisterRoutes(mux)
	}
	return &Gateway{mux: mux}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mux.ServeHTTP(w, r)
}

// Mount registers every route under the root pattern.
func (g *Gateway) Mount(r Registrar) {
	r.RegisterHTTPHandler("/", g)
}
