package websocket

import (
	"net/http"

	"github.com/centrifugal/centrifuge"
)

// NewHandler serves the live view endpoint. Subscribers are anonymous: the
// box channels only carry what the HTTP API already shows.
func NewHandler(node *centrifuge.Node, origins *OriginPolicy) http.Handler {
	ws := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: origins.Allow,
	})
	return anonymousCredentials(ws)
}

func anonymousCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := centrifuge.SetCredentials(r.Context(), &centrifuge.Credentials{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
