package websocket

import (
	"net/http"
	"strings"

	gws "github.com/gorilla/websocket"

	"github.com/gittidev/vibe-socket-test/internal/service"
)

// UpgraderOptions configure the HTTP upgrade.
type UpgraderOptions struct {
	// AllowedOrigins lists browser origins allowed to connect. "*" allows any.
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	Conn            Options
}

// Upgrader turns HTTP requests into relay connections.
type Upgrader struct {
	upgrader gws.Upgrader
	connOpts Options
}

// NewUpgrader builds an upgrader with an origin allow-list.
func NewUpgrader(opts UpgraderOptions) *Upgrader {
	readBuf, writeBuf := opts.ReadBufferSize, opts.WriteBufferSize
	if readBuf <= 0 {
		readBuf = 1024
	}
	if writeBuf <= 0 {
		writeBuf = 1024
	}
	origins := append([]string(nil), opts.AllowedOrigins...)
	return &Upgrader{
		upgrader: gws.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin: func(r *http.Request) bool {
				return OriginAllowed(origins, r.Header.Get("Origin"))
			},
		},
		connOpts: opts.Conn,
	}
}

// Upgrade completes the handshake. On failure the upgrader has already written
// the HTTP error response.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, u.connOpts), nil
}

// Accept defers the handshake until the relay calls it.
func (u *Upgrader) Accept(w http.ResponseWriter, r *http.Request) service.AcceptFunc {
	return func() (service.Conn, error) {
		conn, err := u.Upgrade(w, r)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// OriginAllowed reports whether origin matches the allow-list. Requests without
// an Origin header come from non-browser clients and are allowed.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" || strings.EqualFold(origin, a) {
			return true
		}
	}
	return false
}
