package trainer

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

var ErrClientClosed = errors.New("trainer: client closed")

type EventCallback func(ev trainerdto.Event)

type eventCallbackEntry struct {
	id       int
	callback EventCallback
}

// wireFrame is the union of Reply and Event as seen on the socket.
type wireFrame struct {
	Type      string                       `json:"type"`
	Seq       int64                        `json:"seq"`
	OK        bool                         `json:"ok"`
	Kind      string                       `json:"kind"`
	Message   string                       `json:"message"`
	Error     *trainerdto.Error            `json:"error"`
	State     *trainerdto.BoardState       `json:"state"`
	Exercise  *trainerdto.ExerciseSummary  `json:"exercise"`
	Exercises []trainerdto.ExerciseSummary `json:"exercises"`
}

// Client drives a Session served by Handler. Replies are matched to
// commands by sequence number; events go to the registered callbacks.
type Client struct {
	conn *websocket.Conn
	seq  atomic.Int64

	pendingM sync.Mutex
	pending  map[int64]chan trainerdto.Reply

	cbs []eventCallbackEntry
	cbM sync.RWMutex

	pingInterval time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// Dial opens a session on rawURL (ws:// or wss://). device and token may
// be empty.
func Dial(ctx context.Context, rawURL, device, token string) (*Client, error) {
	if device != "" {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + "device=" + url.QueryEscape(device)
	}
	hdr := http.Header{}
	if token != "" {
		hdr.Set("Authorization", "Bearer "+token)
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, rawURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      hdr,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:         conn,
		pending:      make(map[int64]chan trainerdto.Reply),
		pingInterval: 30 * time.Second,
		stopCh:       make(chan struct{}),
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	c.wg.Add(2)
	go c.listen()
	go c.pingLoop()
	return c, nil
}

func (c *Client) OnEvent(cb EventCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	id := len(c.cbs) + 1
	c.cbs = append(c.cbs, eventCallbackEntry{id: id, callback: cb})
	return id
}

func (c *Client) RemoveEventCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.cbs {
		if cb.id == id {
			c.cbs = append(c.cbs[:i], c.cbs[i+1:]...)
			break
		}
	}
}

// Do sends cmd with a fresh sequence number and waits for its reply.
func (c *Client) Do(ctx context.Context, cmd trainerdto.Command) (trainerdto.Reply, error) {
	cmd.Seq = c.seq.Add(1)
	ch := make(chan trainerdto.Reply, 1)
	c.pendingM.Lock()
	c.pending[cmd.Seq] = ch
	c.pendingM.Unlock()
	defer func() {
		c.pendingM.Lock()
		delete(c.pending, cmd.Seq)
		c.pendingM.Unlock()
	}()

	if err := write(ctx, c.conn, cmd); err != nil {
		return trainerdto.Reply{}, err
	}
	select {
	case rep := <-ch:
		return rep, nil
	case <-ctx.Done():
		return trainerdto.Reply{}, ctx.Err()
	case <-c.stopCh:
		return trainerdto.Reply{}, ErrClientClosed
	}
}

func (c *Client) listen() {
	defer c.wg.Done()
	defer c.stop()
	for {
		var f wireFrame
		if err := wsjson.Read(c.rootCtx, c.conn, &f); err != nil {
			return
		}
		switch f.Type {
		case "reply":
			c.pendingM.Lock()
			ch, ok := c.pending[f.Seq]
			c.pendingM.Unlock()
			if ok {
				ch <- trainerdto.Reply{
					Type: f.Type, Seq: f.Seq, OK: f.OK, Message: f.Message, Error: f.Error,
					State: f.State, Exercise: f.Exercise, Exercises: f.Exercises,
				}
			}
		case "event":
			ev := trainerdto.Event{Type: f.Type, Kind: f.Kind, Message: f.Message, State: f.State}
			c.cbM.RLock()
			callbacks := make([]eventCallbackEntry, len(c.cbs))
			copy(callbacks, c.cbs)
			c.cbM.RUnlock()
			for _, entry := range callbacks {
				if entry.callback != nil {
					entry.callback(ev)
				}
			}
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := c.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.stopCh }

func (c *Client) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Client) Close() error {
	c.stop()
	err := c.conn.Close(websocket.StatusNormalClosure, "close")
	c.rootCancel()
	c.wg.Wait()
	return err
}
