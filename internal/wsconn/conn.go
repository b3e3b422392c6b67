package wsconn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shl888/feedcore/internal/config"
	"github.com/shl888/feedcore/internal/metrics"
	"github.com/shl888/feedcore/internal/venue"
)

// Connection is one venue WebSocket, owned exclusively by its pool.
type Connection struct {
	id     string
	venue  venue.Name
	url    string
	index  int // position within its role list; used for standby delay
	timing config.Timing

	emit    EmitFunc
	metrics *metrics.Registry

	mu             sync.Mutex
	role           Role
	state          State
	symbols        []string
	subscribed     bool
	active         bool
	lastMessage    time.Time
	reconnectCount int
	counters       Counters
	subscribeID    int

	conn           *websocket.Conn
	cancelReceive  context.CancelFunc
	cancelDelayed  context.CancelFunc
	wg             sync.WaitGroup

	logger zerolog.Logger
}

// New constructs a Connection. It does not dial; call Connect. m may be nil,
// in which case parse-error counts are dropped rather than recorded.
func New(id string, v venue.Name, url string, role Role, index int, timing config.Timing, emit EmitFunc, m *metrics.Registry) *Connection {
	return &Connection{
		id:      id,
		venue:   v,
		url:     url,
		index:   index,
		timing:  timing,
		emit:    emit,
		metrics: m,
		role:    role,
		state:   StateDisconnected,
		logger:  log.With().Str("connection_id", id).Str("venue", string(v)).Logger(),
	}
}

// SetSymbols assigns the symbol slice this connection will subscribe to on
// its next connect or subscribe call.
func (c *Connection) SetSymbols(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbols = append([]string(nil), symbols...)
}

func (c *Connection) ID() string      { return c.id }
func (c *Connection) Role() Role      { c.mu.Lock(); defer c.mu.Unlock(); return c.role }
func (c *Connection) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.symbols...)
}

// Connect opens the socket with a 30s timeout, transitions
// connecting -> connected, and — depending on role — immediately subscribes
// (master), schedules a delayed heartbeat subscribe (warm standby), or stays
// idle (monitor). The connection never reconnects itself; the pool is the
// sole authority on recovery.
func (c *Connection) Connect(ctx context.Context) bool {
	c.mu.Lock()
	c.state = StateConnecting
	url := c.url
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.timing.ConnectTimeout)
	defer cancel()

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("connect failed")
		return false
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.lastMessage = time.Now()
	c.reconnectCount = 0
	role := c.role
	c.mu.Unlock()

	receiveCtx, receiveCancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancelReceive = receiveCancel
	c.mu.Unlock()
	c.wg.Add(1)
	go c.messageLoop(receiveCtx)

	switch role {
	case RoleMaster:
		if len(c.Symbols()) > 0 {
			if err := c.Subscribe(ctx); err != nil {
				c.logger.Error().Err(err).Msg("master subscribe failed")
			}
			c.mu.Lock()
			c.state = StateActive
			c.active = true
			c.mu.Unlock()
		}
	case RoleWarmStandby:
		if len(c.Symbols()) > 0 {
			delay := c.timing.StandbyDelay(c.index)
			delayCtx, delayCancel := context.WithCancel(context.Background())
			c.mu.Lock()
			c.cancelDelayed = delayCancel
			c.mu.Unlock()
			c.wg.Add(1)
			go c.delayedSubscribe(delayCtx, delay)
		}
	case RoleMonitor:
		// no subscription
	}

	return true
}

func (c *Connection) delayedSubscribe(ctx context.Context, delay time.Duration) {
	defer c.wg.Done()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	c.mu.Lock()
	connected := c.state != StateDisconnected
	already := c.subscribed
	c.mu.Unlock()

	if !connected || already {
		return
	}
	if err := c.Subscribe(context.Background()); err != nil {
		c.logger.Error().Err(err).Msg("delayed subscribe failed")
	}
}

// Subscribe builds and sends batched subscription frames for the current
// symbol slice, 50 per batch with a 1.5s inter-batch sleep, per venue wire
// format.
func (c *Connection) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	symbols := append([]string(nil), c.symbols...)
	v := c.venue
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%s: not connected", c.id)
	}
	if len(symbols) == 0 {
		c.logger.Warn().Msg("no symbols to subscribe")
		return nil
	}

	frames := buildSubscribeFrames(v, symbols, c.timing.SubscribeBatchSize, &c.subscribeID)
	if err := c.sendBatches(ctx, frames); err != nil {
		return err
	}

	c.mu.Lock()
	c.subscribed = true
	if c.state == StateConnected {
		c.state = StateSubscribed
	}
	c.mu.Unlock()
	return nil
}

// Unsubscribe mirrors Subscribe, batched to avoid exceeding venue limits.
func (c *Connection) Unsubscribe(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	symbols := append([]string(nil), c.symbols...)
	v := c.venue
	c.mu.Unlock()

	if conn == nil || len(symbols) == 0 {
		return nil
	}

	frames := buildUnsubscribeFrames(v, symbols, c.timing.SubscribeBatchSize, &c.subscribeID)
	if err := c.sendBatches(ctx, frames); err != nil {
		return err
	}

	c.mu.Lock()
	c.subscribed = false
	c.active = false
	c.mu.Unlock()
	return nil
}

func (c *Connection) sendBatches(ctx context.Context, frames [][]byte) error {
	for i, frame := range frames {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("%s: connection closed mid-batch", c.id)
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return fmt.Errorf("%s: send subscribe batch %d: %w", c.id, i, err)
		}
		if i < len(frames)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.timing.SubscribeBatchSleep):
			}
		}
	}
	return nil
}

// SwitchRole re-architects the source's procedural switch_role as an
// explicit pre/post-condition transition: if currently subscribed, it
// unsubscribes first, swaps the symbol slice, then resubscribes if
// connected. Calling it twice with identical arguments is a no-op the
// second time — the symbol slice already matches so resubscribe is skipped.
func (c *Connection) SwitchRole(ctx context.Context, newRole Role, newSymbols []string) error {
	c.mu.Lock()
	oldRole := c.role
	sameSymbols := equalSymbols(c.symbols, newSymbols)
	alreadySubscribed := c.subscribed
	c.mu.Unlock()

	if oldRole == newRole && sameSymbols && alreadySubscribed {
		return nil
	}

	c.mu.Lock()
	wasSubscribed := c.subscribed
	connected := c.state != StateDisconnected && c.conn != nil
	c.mu.Unlock()

	if connected && wasSubscribed {
		if err := c.Unsubscribe(ctx); err != nil {
			return fmt.Errorf("switch_role unsubscribe: %w", err)
		}
	}

	symbols := newSymbols
	if len(symbols) == 0 && newRole == RoleWarmStandby {
		symbols = []string{venue.HeartbeatSymbol(c.venue)}
	}

	c.mu.Lock()
	c.role = newRole
	c.symbols = append([]string(nil), symbols...)
	c.active = newRole == RoleMaster
	c.mu.Unlock()

	if connected && len(symbols) > 0 {
		if err := c.Subscribe(ctx); err != nil {
			return fmt.Errorf("switch_role subscribe: %w", err)
		}
	}
	return nil
}

func equalSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Disconnect cancels pending delayed-subscribe, closes the socket, and
// cancels the receive loop.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.cancelDelayed != nil {
		c.cancelDelayed()
	}
	if c.cancelReceive != nil {
		c.cancelReceive()
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.subscribed = false
	c.active = false
	c.mu.Unlock()

	if conn != nil {
		conn.SetWriteDeadline(time.Now().Add(c.timing.CloseTimeout))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	c.wg.Wait()
}

// Health reports the snapshot C2's monitor loop and C6 read.
func (c *Connection) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	secondsSince := 999.0
	if !c.lastMessage.IsZero() {
		secondsSince = time.Since(c.lastMessage).Seconds()
	}
	return Health{
		ConnectionID:            c.id,
		Venue:                   c.venue,
		Role:                    c.role,
		Connected:               c.state != StateDisconnected,
		Subscribed:              c.subscribed,
		IsActive:                c.active,
		SymbolsCount:            len(c.symbols),
		SecondsSinceLastMessage: secondsSince,
		ReconnectCount:          c.reconnectCount,
	}
}

// MarkReconnectAttempt increments the reconnect counter; called by the pool
// before retrying a failed connection.
func (c *Connection) MarkReconnectAttempt() {
	c.mu.Lock()
	c.reconnectCount++
	c.mu.Unlock()
}

func (c *Connection) messageLoop(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("message loop panic")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.timing.HeartbeatInterval * 2))
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn().Err(err).Msg("socket closed")
			c.mu.Lock()
			c.state = StateDisconnected
			c.subscribed = false
			c.active = false
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		c.lastMessage = time.Now()
		c.mu.Unlock()

		envs, err := parseMessage(c.venue, data)
		if err != nil {
			c.mu.Lock()
			c.counters.ParseErrors++
			c.mu.Unlock()
			if c.metrics != nil {
				c.metrics.RecordWSParseError(string(c.venue))
			}
			c.logger.Warn().Err(err).Msg("parse error, dropping frame")
			continue
		}
		for _, e := range envs {
			c.bumpCounter(e.EventKind)
			if c.emit != nil {
				c.emit(e)
			}
		}
	}
}

func (c *Connection) bumpCounter(kind venue.EventKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case venue.EventTicker:
		c.counters.TickerMessages++
	case venue.EventMarkPrice:
		c.counters.MarkPriceMessages++
	case venue.EventFundingRate:
		c.counters.FundingRateMessages++
	}
}
