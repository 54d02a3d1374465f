package wsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"rimcity-link/internal/config"
	"rimcity-link/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const DefaultPath = "/docs"

type Dialer struct {
	// Path is the websocket endpoint on the store host.
	Path string
}

func (d Dialer) Dial(ctx context.Context, ep config.StoreEndpoint) (store.Conn, error) {
	path := d.Path
	if path == "" {
		path = DefaultPath
	}
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(ep.Addr, strconv.Itoa(ep.Port)),
		Path:   path,
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws, ep.Timeout), nil
}

// Conn is a websocket store connection. Reads block for the correlated
// reply up to the call timeout; writes and subscriptions are sent without
// waiting.
type Conn struct {
	ws      *websocket.Conn
	timeout time.Duration
	nextID  atomic.Uint64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Reply
	subs    map[string]bool
	closed  chan struct{}
	once    sync.Once
}

func newConn(ws *websocket.Conn, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = config.DefaultStoreTimeout
	}
	c := &Conn{
		ws:      ws,
		timeout: timeout,
		pending: map[string]chan Reply{},
		subs:    map[string]bool{},
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer c.shutdown()
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var rep Reply
		if err := json.Unmarshal(msg, &rep); err != nil {
			continue
		}
		c.mu.Lock()
		ch := c.pending[rep.ID]
		delete(c.pending, rep.ID)
		c.mu.Unlock()
		if ch != nil {
			ch <- rep
			continue
		}
		if !rep.Ok {
			log.Debug().Str("request_id", rep.ID).Str("error", rep.Error).Msg("store rejected frame")
		}
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

func (c *Conn) send(req Request) error {
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		c.shutdown()
		return err
	}
	return nil
}

func (c *Conn) newID() string {
	return strconv.FormatUint(c.nextID.Add(1), 10)
}

func (c *Conn) Read(ctx context.Context, scope, path string, lock store.LockMode) (json.RawMessage, error) {
	if !c.Connected() {
		return nil, store.ErrDisconnected
	}
	req := Request{ID: c.newID(), Op: OpRead, Scope: scope, Path: path, Lock: int(lock)}
	ch := make(chan Reply, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := c.send(req); err != nil {
		return nil, err
	}
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case rep := <-ch:
		if !rep.Ok {
			return nil, replyError(rep.Error)
		}
		if len(rep.Value) == 0 || string(rep.Value) == "null" {
			return nil, store.ErrNotFound
		}
		return rep.Value, nil
	case <-timer.C:
		return nil, fmt.Errorf("read %s: %w", path, context.DeadlineExceeded)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, store.ErrDisconnected
	}
}

func (c *Conn) Write(ctx context.Context, scope, path string, value any, lock store.LockMode) error {
	if !c.Connected() {
		return store.ErrDisconnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := json.RawMessage("null")
	if value != nil {
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode value: %w", err)
		}
		raw = b
	}
	return c.send(Request{ID: c.newID(), Op: OpWrite, Scope: scope, Path: path, Lock: int(lock), Value: raw})
}

func (c *Conn) Subscribe(ctx context.Context, scope, path string) error {
	if !c.Connected() {
		return store.ErrDisconnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key := scope + ":" + path
	c.mu.Lock()
	if c.subs[key] {
		c.mu.Unlock()
		return nil
	}
	c.subs[key] = true
	c.mu.Unlock()
	return c.send(Request{ID: c.newID(), Op: OpSubscribe, Scope: scope, Path: path})
}

func (c *Conn) Connected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Disconnect closes the socket; the server drops our subscriptions with it.
func (c *Conn) Disconnect() error {
	if !c.Connected() {
		return nil
	}
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.mu.Lock()
	c.subs = map[string]bool{}
	c.mu.Unlock()
	c.shutdown()
	return nil
}

func replyError(code string) error {
	switch code {
	case errCodeNotFound:
		return store.ErrNotFound
	case errCodeInvalidPath:
		return store.ErrInvalidPath
	default:
		return errors.New(code)
	}
}
