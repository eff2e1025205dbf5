package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"studyquiz-sync/internal/app"
	"studyquiz-sync/internal/domain"
)

// WSHandler drives one quiz session per connection.
type WSHandler struct {
	service  *app.StudyService
	profile  *app.Profile
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.StudyService, profile *app.Profile) *WSHandler {
	return &WSHandler{
		service: service,
		profile: profile,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Option string `json:"option"`
}

type advancePayload struct {
	Delta int `json:"delta"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type startedPayload struct {
	Session   domain.SessionSnapshot `json:"session"`
	Allowance domain.Allowance       `json:"allowance"`
}

type deniedPayload struct {
	Reason    string           `json:"reason"`
	Allowance domain.Allowance `json:"allowance"`
}

type finishedPayload struct {
	Record domain.AttemptRecord `json:"record"`
}

type syncPayload struct {
	RecordID  string `json:"recordId"`
	OK        bool   `json:"ok"`
	ReceiptID string `json:"receiptId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ServeWS upgrades the request, starts a session for the student and relays its
// state changes until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	identity := domain.Identity{StudentID: q.Get("studentId"), StudentName: q.Get("name")}
	if identity.StudentID == "" && h.profile != nil {
		if current, ok, err := h.profile.CurrentStudent(r.Context()); err == nil && ok {
			identity = current
		}
	}
	count, _ := strconv.Atoi(q.Get("count"))
	req := app.StartRequest{
		Identity: identity,
		ClassID:  q.Get("classId"),
		QuizID:   q.Get("quizId"),
		Topic:    q.Get("topic"),
		Count:    count,
	}
	if err := identity.Validate(); err != nil || (req.QuizID == "" && req.Topic == "") {
		http.Error(w, "missing studentId, name, or quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	started, err := h.service.Start(ctx, req)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	if !started.Allowed() {
		_ = conn.WriteJSON(outboundMessage[deniedPayload]{Type: "denied", Payload: deniedPayload{
			Reason:    started.Denial,
			Allowance: started.Allowance,
		}})
		return
	}
	session := started.Session

	updates, cancel := session.Subscribe()
	defer cancel()
	initial := <-updates

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var relays sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logrus.WithError(err).Debug("ws write failed")
				return
			}
		}
	}()

	// emit queues a message unless the connection is shutting down.
	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}

	relays.Add(1)
	go func() {
		defer relays.Done()
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				emit(outboundMessage[any]{Type: "state", Payload: snap})
			case <-closeSignals:
				return
			}
		}
	}()

	onOutcome := func(outcome *app.Outcome) {
		if outcome == nil {
			return
		}
		emit(outboundMessage[any]{Type: "finished", Payload: finishedPayload{Record: outcome.Record}})
		if outcome.Push == nil {
			return
		}
		relays.Add(1)
		go func() {
			defer relays.Done()
			select {
			case <-outcome.Push.Done():
			case <-closeSignals:
				return
			}
			msg := syncPayload{RecordID: outcome.Record.ID, OK: outcome.Push.Err() == nil}
			if err := outcome.Push.Err(); err != nil {
				msg.Error = err.Error()
			} else {
				msg.ReceiptID = outcome.Push.Receipt().ID
			}
			emit(outboundMessage[any]{Type: "sync", Payload: msg})
		}()
	}

	emit(outboundMessage[any]{Type: "started", Payload: startedPayload{Session: initial, Allowance: started.Allowance}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, session, inbound, onOutcome); err != nil {
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
	}

	close(closeSignals)
	relays.Wait()
	close(send)
	<-writerDone
}

var (
	errBadSelect   = errors.New("invalid select payload")
	errBadAdvance  = errors.New("invalid advance payload")
	errUnsupported = errors.New("unsupported message type")
)

func (h *WSHandler) dispatch(ctx context.Context, session *app.Session, inbound inboundMessage, onOutcome func(*app.Outcome)) error {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errBadSelect
		}
		session.Select(payload.Option)
	case "confirm":
		session.Confirm()
	case "advance":
		var payload advancePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errBadAdvance
		}
		outcome, err := session.Advance(ctx, payload.Delta)
		if err != nil {
			return err
		}
		onOutcome(outcome)
	case "finish":
		outcome, err := session.Finish(ctx)
		if err != nil {
			return err
		}
		onOutcome(outcome)
	default:
		return errUnsupported
	}
	return nil
}
