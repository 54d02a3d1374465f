package wsstore

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"sync"

	"rimcity-link/internal/store"
	"rimcity-link/internal/store/memstore"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	metricFramesTotal      = expvar.NewInt("docstore_frames_total")
	metricFrameErrorsTotal = expvar.NewInt("docstore_frame_errors_total")
	metricPeersActive      = expvar.NewInt("docstore_peers_active")
)

type peer struct {
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
}

// Server exposes a memstore over websocket frames. It is a development
// harness; it keeps subscriptions for bookkeeping but never pushes.
type Server struct {
	docs     *memstore.Store
	upgrader websocket.Upgrader
	mu       sync.Mutex
	peers    map[*peer]bool
}

func NewServer(docs *memstore.Store) *Server {
	return &Server{
		docs:     docs,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		peers:    map[*peer]bool{},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn, send: make(chan []byte, 16), subs: map[string]bool{}}
	s.mu.Lock()
	s.peers[p] = true
	s.mu.Unlock()
	metricPeersActive.Add(1)

	go s.writeLoop(p)
	s.readLoop(p)
}

func (s *Server) readLoop(p *peer) {
	defer func() {
		s.unregister(p)
		_ = p.conn.Close()
	}()

	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		metricFramesTotal.Add(1)
		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			metricFrameErrorsTotal.Add(1)
			s.reply(p, Reply{Error: errCodeBadRequest})
			continue
		}
		s.reply(p, s.handle(p, req))
	}
}

func (s *Server) handle(p *peer, req Request) Reply {
	switch req.Op {
	case OpRead:
		raw, err := s.docs.Get(req.Scope, req.Path)
		if err != nil {
			return errorReply(req.ID, err)
		}
		return Reply{ID: req.ID, Ok: true, Value: raw}
	case OpWrite:
		var value any
		if len(req.Value) > 0 {
			value = req.Value
			if string(req.Value) == "null" {
				value = nil
			}
		}
		if err := s.docs.Put(req.Scope, req.Path, value); err != nil {
			return errorReply(req.ID, err)
		}
		return Reply{ID: req.ID, Ok: true}
	case OpSubscribe:
		s.mu.Lock()
		p.subs[req.Scope+":"+req.Path] = true
		s.mu.Unlock()
		return Reply{ID: req.ID, Ok: true}
	default:
		metricFrameErrorsTotal.Add(1)
		return Reply{ID: req.ID, Error: errCodeBadRequest}
	}
}

func (s *Server) reply(p *peer, rep Reply) {
	b, err := json.Marshal(rep)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.peers[p] {
		return
	}
	select {
	case p.send <- b:
	default:
		log.Warn().Str("request_id", rep.ID).Msg("docstore peer send buffer full")
	}
}

func (s *Server) writeLoop(p *peer) {
	for msg := range p.send {
		_ = p.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.peers[p] {
		return
	}
	delete(s.peers, p)
	close(p.send)
	metricPeersActive.Add(-1)
}

// Subscriptions counts live subscriptions across all peers.
func (s *Server) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p := range s.peers {
		n += len(p.subs)
	}
	return n
}

func errorReply(id string, err error) Reply {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Reply{ID: id, Error: errCodeNotFound}
	case errors.Is(err, store.ErrInvalidPath):
		return Reply{ID: id, Error: errCodeInvalidPath}
	default:
		log.Warn().Err(err).Str("request_id", id).Msg("docstore request failed")
		return Reply{ID: id, Error: errCodeInternal}
	}
}
