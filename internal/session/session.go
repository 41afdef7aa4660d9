package session

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lanbeam/lanbeam/internal/presence"
)

// State is the lifecycle of a session: Connecting -> Active -> Closing
// -> Closed. Closed is terminal.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

// Intervals control the session's two independent timers and the
// liveness cutoff enforced by the heartbeat timer.
type Intervals struct {
	Heartbeat     time.Duration // liveness probe cadence
	ClientTimeout time.Duration // max silence before disconnect
	Broadcast     time.Duration // roster push cadence
}

// DefaultIntervals returns the production timer settings.
func DefaultIntervals() Intervals {
	return Intervals{
		Heartbeat:     5 * time.Second,
		ClientTimeout: 10 * time.Second,
		Broadcast:     10 * time.Second,
	}
}

const controlWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session owns one real-time connection. It holds only its own device
// identifier into the shared registry, never a copy of registry state.
type Session struct {
	deviceID   string
	deviceName string
	conn       *websocket.Conn
	registry   *presence.Registry
	intervals  Intervals

	state atomic.Int32

	signalMu   sync.Mutex
	lastSignal time.Time

	writeMu sync.Mutex // serializes data-frame writes

	done      chan struct{}
	closeOnce sync.Once
}

// Handler returns a gin handler that upgrades the request and serves one
// session per connection, blocking until the session ends.
func Handler(registry *presence.Registry, intervals Intervals) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			name = "unknown device"
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		newSession(conn, name, registry, intervals).Serve()
	}
}

func newSession(conn *websocket.Conn, name string, registry *presence.Registry, intervals Intervals) *Session {
	s := &Session{
		deviceName: name,
		conn:       conn,
		registry:   registry,
		intervals:  intervals,
		lastSignal: time.Now(),
		done:       make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// Serve registers the device, runs both timers, and consumes inbound
// frames until the connection ends. Deregistration is guaranteed to
// happen exactly once before the session reports Closed, whichever
// trigger path wins.
func (s *Session) Serve() {
	device := s.registry.Register(s.deviceName)
	s.deviceID = device.ID
	s.state.Store(int32(StateActive))

	log.Info().
		Str("device_id", s.deviceID).
		Str("name", s.deviceName).
		Msg("session started")

	s.conn.SetPongHandler(func(string) error {
		s.markAlive()
		return nil
	})
	s.conn.SetPingHandler(func(appData string) error {
		s.markAlive()
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
	})

	go s.run()
	s.readLoop()
	s.Close()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// DeviceID returns the registry identifier assigned to this session.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// Close tears the session down exactly once: both timers stop, the
// device is deregistered, and the connection is closed. Safe to call
// from any goroutine, any number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		close(s.done)
		s.registry.Deregister(s.deviceID)
		s.conn.Close()
		s.state.Store(int32(StateClosed))

		log.Info().
			Str("device_id", s.deviceID).
			Str("name", s.deviceName).
			Msg("session closed")
	})
}

// run drives the heartbeat and broadcast timers. The two are independent
// and may interleave in any order.
func (s *Session) run() {
	heartbeat := time.NewTicker(s.intervals.Heartbeat)
	broadcast := time.NewTicker(s.intervals.Broadcast)
	defer heartbeat.Stop()
	defer broadcast.Stop()

	for {
		select {
		case <-s.done:
			return

		case <-heartbeat.C:
			if s.silentFor() > s.intervals.ClientTimeout {
				log.Info().
					Str("device_id", s.deviceID).
					Str("name", s.deviceName).
					Msg("client timeout, disconnecting")
				s.Close()
				return
			}
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteWait)); err != nil {
				s.Close()
				return
			}

		case <-broadcast.C:
			s.registry.Touch(s.deviceID)
			s.sendRoster()
		}
	}
}

// readLoop consumes inbound frames until the connection errors or closes.
func (s *Session) readLoop() {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("device_id", s.deviceID).Msg("session read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !s.handleText(data) {
			return
		}
	}
}

// handleText dispatches one text frame. It returns false when the frame
// was a protocol error and the session must end.
func (s *Session) handleText(data []byte) bool {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Undecodable frames are protocol errors and end the session.
		log.Warn().Err(err).Str("device_id", s.deviceID).Msg("malformed session message")
		s.writeJSON(Outbound{Type: TypeError, Payload: ErrorPayload{Message: "malformed message"}})
		return false
	}

	switch env.Type {
	case TypeDeviceDiscovery:
		// Request/response shortcut, independent of the broadcast timer.
		s.sendRoster()
	default:
		// Deliberate pass-through: frames not recognized as control
		// messages are echoed back verbatim. Transfer lifecycle notices
		// ride on this.
		s.writeRaw(data)
	}
	return true
}

// sendRoster refreshes nothing itself; it snapshots the live view and
// pushes it to the peer.
func (s *Session) sendRoster() {
	payload := DeviceListPayload{
		Devices:   s.registry.LiveDevices(),
		Timestamp: time.Now().UTC(),
	}
	if err := s.writeJSON(Outbound{Type: TypeDeviceList, Payload: payload}); err != nil {
		log.Debug().Err(err).Str("device_id", s.deviceID).Msg("roster push failed")
	}
}

func (s *Session) writeJSON(msg Outbound) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *Session) writeRaw(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Debug().Err(err).Str("device_id", s.deviceID).Msg("echo write failed")
	}
}

func (s *Session) markAlive() {
	s.signalMu.Lock()
	s.lastSignal = time.Now()
	s.signalMu.Unlock()
}

func (s *Session) silentFor() time.Duration {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()
	return time.Since(s.lastSignal)
}
