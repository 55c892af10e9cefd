package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"trading-analytics/internal/backtest"
	"trading-analytics/internal/model"
	"trading-analytics/internal/ringbuf"
	redisstore "trading-analytics/internal/store/redis"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = 30 * time.Second
	wsStartWait = 10 * time.Second
	wsReadLimit = 8 << 20 // inline bars can be large
	wsRingSize  = 4096
)

// wsEvent is one frame of the backtest stream.
type wsEvent struct {
	Type   string             `json:"type"` // started | equity | trade | result | error
	RunID  string             `json:"run_id,omitempty"`
	Equity *model.EquityPoint `json:"equity,omitempty"`
	Trade  *model.Trade       `json:"trade,omitempty"`
	Result json.RawMessage    `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// wsStart is the first client message in run mode.
type wsStart struct {
	Type    string          `json:"type"`
	Request BacktestRequest `json:"request"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := s.cfg.Gateway.CORSOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// handleWSBacktest streams a backtest. Without a run_id query parameter
// the client sends {"type":"run","request":{...}} and the run executes on
// this connection; with run_id it attaches to a run published elsewhere.
func (s *Server) handleWSBacktest(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID != "" && s.deps.Live == nil {
		writeError(w, http.StatusServiceUnavailable, "live run streaming is not configured")
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	s.wsClients.Add(1)
	if m := s.deps.Metrics; m != nil {
		m.WSClients.Inc()
	}
	defer func() {
		s.wsClients.Add(-1)
		if m := s.deps.Metrics; m != nil {
			m.WSClients.Dec()
		}
		s.log.Debug("ws client disconnected")
	}()

	conn.SetReadLimit(wsReadLimit)
	if runID != "" {
		s.attachRun(r.Context(), conn, runID)
		return
	}
	s.streamRun(r.Context(), conn)
}

// ringObserver feeds run progress into a ring drained by the writer.
// Only the run goroutine pushes, so the ring stays single-producer.
type ringObserver struct {
	ring   *ringbuf.Ring[wsEvent]
	notify chan struct{}
}

func (o *ringObserver) push(ev wsEvent) {
	o.ring.Push(ev)
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *ringObserver) OnEquity(runID string, p model.EquityPoint) {
	o.push(wsEvent{Type: "equity", RunID: runID, Equity: &p})
}

func (o *ringObserver) OnTrade(runID string, t model.Trade) {
	o.push(wsEvent{Type: "trade", RunID: runID, Trade: &t})
}

type runOutcome struct {
	res *backtest.Result
	err error
}

func (s *Server) streamRun(parent context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(wsStartWait))
	var start wsStart
	if err := conn.ReadJSON(&start); err != nil {
		writeFrame(conn, wsEvent{Type: "error", Error: "expected run request: " + err.Error()})
		return
	}
	if start.Type != "run" {
		writeFrame(conn, wsEvent{Type: "error", Error: "first message must have type \"run\""})
		return
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	// Closing the socket cancels the run.
	go readUntilClose(conn, cancel)

	runID := uuid.NewString()
	obs := &ringObserver{ring: ringbuf.New[wsEvent](wsRingSize), notify: make(chan struct{}, 1)}
	done := make(chan runOutcome, 1)
	go func() {
		res, err := s.runBacktest(ctx, &start.Request, obs, backtest.WithRunID(runID))
		done <- runOutcome{res, err}
	}()

	if err := writeFrame(conn, wsEvent{Type: "started", RunID: runID}); err != nil {
		cancel()
		<-done
		return
	}

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	defer func() {
		if m := s.deps.Metrics; m != nil {
			m.WSSendDropped.Add(float64(obs.ring.Dropped()))
		}
	}()

	for {
		select {
		case <-obs.notify:
			if err := writeBatch(conn, obs.ring); err != nil {
				cancel()
				<-done
				return
			}
		case out := <-done:
			if err := writeBatch(conn, obs.ring); err != nil {
				return
			}
			final := wsEvent{Type: "result", RunID: runID}
			if out.err != nil {
				final = wsEvent{Type: "error", RunID: runID, Error: out.err.Error()}
			} else if data, err := json.Marshal(out.res); err != nil {
				final = wsEvent{Type: "error", RunID: runID, Error: err.Error()}
			} else {
				final.Result = data
			}
			writeFrame(conn, final)
			closeNormal(conn)
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				<-done
				return
			}
		}
	}
}

// attachRun replays a run's equity history, then follows its channel
// until the run reports done.
func (s *Server) attachRun(parent context.Context, conn *websocket.Conn, runID string) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	go readUntilClose(conn, cancel)

	// Subscribe before reading history so no point falls between them.
	sub, err := s.deps.Live.SubscribeRun(ctx, runID)
	if err != nil {
		writeFrame(conn, wsEvent{Type: "error", RunID: runID, Error: err.Error()})
		return
	}
	defer sub.Close()

	history, err := s.deps.Live.EquityHistory(ctx, runID)
	if err != nil {
		writeFrame(conn, wsEvent{Type: "error", RunID: runID, Error: err.Error()})
		return
	}
	var last time.Time
	for i := range history {
		if err := writeFrame(conn, wsEvent{Type: "equity", RunID: runID, Equity: &history[i]}); err != nil {
			return
		}
		last = history[i].TS
	}

	// A run that finished before we attached has its result cached already.
	if s.sendCachedResult(ctx, conn, runID) {
		return
	}

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev redisstore.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			switch ev.Type {
			case "done":
				if !s.sendCachedResult(ctx, conn, runID) {
					writeFrame(conn, wsEvent{Type: "error", RunID: runID, Error: "result not available"})
				}
				return
			case "equity":
				if ev.Equity == nil || !ev.Equity.TS.After(last) {
					continue
				}
				last = ev.Equity.TS
			}
			if err := writeFrame(conn, wsEvent{Type: ev.Type, RunID: runID, Equity: ev.Equity, Trade: ev.Trade}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendCachedResult(ctx context.Context, conn *websocket.Conn, runID string) bool {
	if s.deps.Cache == nil {
		return false
	}
	data, err := s.deps.Cache.GetResult(ctx, runID)
	if err != nil {
		if !errors.Is(err, redisstore.ErrCacheMiss) {
			s.log.Warn("ws result lookup failed", slog.String("run_id", runID), slog.Any("error", err))
		}
		return false
	}
	writeFrame(conn, wsEvent{Type: "result", RunID: runID, Result: data})
	closeNormal(conn)
	return true
}

// readUntilClose discards client frames and calls cancel once the
// connection fails or closes.
func readUntilClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, ev wsEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

// writeBatch drains the ring, one frame per event.
func writeBatch(conn *websocket.Conn, ring *ringbuf.Ring[wsEvent]) error {
	for {
		ev, ok := ring.Pop()
		if !ok {
			return nil
		}
		if err := writeFrame(conn, ev); err != nil {
			return err
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}
