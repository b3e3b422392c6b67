// Package wsconn implements C1: one venue WebSocket connection that can
// connect, subscribe, parse, and emit normalized frames, and whose role can
// be swapped live by the owning pool.
package wsconn

import (
	"time"

	"github.com/shl888/feedcore/internal/venue"
)

// Role is a connection's place in the pool.
type Role string

const (
	RoleMaster      Role = "master"
	RoleWarmStandby Role = "warm_standby"
	RoleMonitor     Role = "monitor"
)

// State is a connection's lifecycle stage.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateSubscribed   State = "subscribed"
	StateActive       State = "active"
)

// Envelope is the normalized frame C1 emits for every data message. Raw is
// preserved verbatim so S1 can traverse it by path.
type Envelope struct {
	Venue           venue.Name
	CanonicalSymbol string
	EventKind       venue.EventKind
	WireEventType   string
	Raw             map[string]interface{}
	IngestInstant   time.Time
}

// Counters tracks per-connection message volume over the connection's
// lifetime; reconnecting does not reset it.
type Counters struct {
	TickerMessages  int64
	MarkPriceMessages int64
	FundingRateMessages int64
	ParseErrors     int64
}

// Health is the snapshot C2's monitor loop and the status reporter read.
type Health struct {
	ConnectionID          string
	Venue                 venue.Name
	Role                  Role
	Connected             bool
	Subscribed            bool
	IsActive              bool
	SymbolsCount          int
	SecondsSinceLastMessage float64
	ReconnectCount        int
}

// EmitFunc is how a Connection hands a normalized envelope to its owner
// (the store's update_market_data entry point, injected at construction).
type EmitFunc func(Envelope)
