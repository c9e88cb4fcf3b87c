package proxy

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket accepts the client upgrade, connects to the upstream
// WebSocket (trying a fallback path for Streamlit), and runs two concurrent
// pumps until either side terminates.
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	shortID, _ := splitProxyPath(r.URL.Path)
	svc := s.findByShortID(shortID)
	if svc == nil {
		http.NotFound(w, r)
		return
	}

	handler := HandlerFor(svc.Framework)
	primary, alternative := handler.RewriteWS(shortID, r.URL.Path)

	upstreamHost, err := resolveUpstream(r.Context(), s.httpClient, s.hostAliases, svc.ExternalPort, "/")
	if err != nil {
		http.Error(w, "service unreachable", http.StatusServiceUnavailable)
		return
	}
	wsBase := "ws" + strings.TrimPrefix(upstreamHost, "http")

	dialer := &websocket.Dialer{HandshakeTimeout: s.dialTimeout}

	upstreamConn, _, err := dialer.Dial(wsBase+primary, nil)
	if err != nil && alternative != "" {
		upstreamConn, _, err = dialer.Dial(wsBase+alternative, nil)
	}
	if err != nil {
		http.Error(w, "upstream websocket unreachable", http.StatusBadGateway)
		return
	}
	defer upstreamConn.Close()

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer clientConn.Close()

	var once sync.Once
	done := make(chan struct{})
	closeDone := func() { once.Do(func() { close(done) }) }

	go pump(clientConn, upstreamConn, closeDone)
	go pump(upstreamConn, clientConn, closeDone)

	<-done
}

func pump(from, to *websocket.Conn, onDone func()) {
	defer onDone()
	for {
		msgType, data, err := from.ReadMessage()
		if err != nil {
			return
		}
		if err := to.WriteMessage(msgType, data); err != nil {
			return
		}
	}
}
