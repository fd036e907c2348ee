package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ordertask/ordertask/internal/engine"
	"github.com/ordertask/ordertask/internal/platform/response"
)

// submitRequest is the demo front end's request body: an opaque payload
// plus a flag asking the echo task to simulate async completion.
type submitRequest struct {
	Payload json.RawMessage `json:"payload"`
	Async   bool            `json:"async"`
	DelayMS int             `json:"delay_ms"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]
	if identity == "" {
		response.Error(w, response.ErrBadRequest.WithDetails("identity", "required"))
		return
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(r.Context(), identity)
		if err != nil {
			s.log.Warn("rate limiter check failed", "identity", identity, "error", err)
		} else if !allowed {
			response.Error(w, response.ErrRateLimit)
			return
		}
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, response.ErrBadRequest.WithDetails("body", err.Error()))
		return
	}

	delay := time.Duration(req.DelayMS) * time.Millisecond
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	task := &echoTask{payload: req.Payload, async: req.Async, delay: delay}

	done := make(chan *engine.Output, 1)
	ctx := &engine.Context{
		Identity: engine.Identity(identity),
		Handle:   &engine.IsolationHandle{Name: "httpapi"},
		Post: func(_ context.Context, output *engine.Output) error {
			s.publishResult(identity, output)
			select {
			case done <- output:
			default:
			}
			return nil
		},
	}

	env := engine.NewOutEnvelope(ctx, engine.NewOutput, task)
	if !s.executor.Submit(env) {
		response.Error(w, response.ErrServiceUnavailable.WithDetails("reason", "executor at capacity"))
		return
	}

	select {
	case output := <-done:
		response.OK(w, map[string]interface{}{"identity": identity, "result": output.Values})
	case <-time.After(s.waitFor):
		response.JSON(w, http.StatusAccepted, map[string]interface{}{
			"identity": identity,
			"status":   "accepted",
			"stream":   "/v1/tasks/" + identity + "/stream",
		})
	case <-r.Context().Done():
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "identity", identity, "error", err)
		return
	}
	defer conn.Close()

	ch := s.broadcaster.subscribe(identity)
	defer s.broadcaster.unsubscribe(identity, ch)

	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) publishResult(identity string, output *engine.Output) {
	payload, err := json.Marshal(map[string]interface{}{"identity": identity, "result": output.Values})
	if err != nil {
		s.log.Warn("failed to marshal stream payload", "identity", identity, "error", err)
		return
	}
	s.broadcaster.publish(identity, payload)
}
