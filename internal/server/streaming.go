package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/arin/pagesum/internal/session"
	"github.com/arin/pagesum/internal/think"
)

// SSE event names.
const (
	eventState = "state"
	eventDone  = "done"
	eventError = "error"
)

type errorEvent struct {
	Message  string `json:"message"`
	Thinking string `json:"thinking"`
	Visible  string `json:"visible"`
}

// sseWriter starts the event stream lazily, so errors raised before the
// first token can still be answered with a plain JSON status.
type sseWriter struct {
	c       *gin.Context
	started bool
}

func (w *sseWriter) start() {
	if w.started {
		return
	}
	w.started = true
	h := w.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.c.Status(http.StatusOK)
}

func (w *sseWriter) send(event string, data any) {
	w.start()
	payload, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).Error("failed to encode event")
		return
	}
	w.c.SSEvent(event, string(payload))
	w.c.Writer.Flush()
}

// state is the onUpdate callback handed to the session manager.
func (w *sseWriter) state(s think.State) {
	w.send(eventState, s)
}

// streamState runs fn and reports its outcome as the final SSE event. A
// failed stream sends its partial state with the error.
func streamState(c *gin.Context, fn func(onUpdate func(think.State)) (think.State, error)) {
	if _, ok := c.Writer.(http.Flusher); !ok {
		c.JSON(http.StatusInternalServerError, errorBody{Error: "streaming not supported"})
		return
	}

	w := &sseWriter{c: c}
	final, err := fn(w.state)
	switch {
	case err == nil:
		w.send(eventDone, final)
	case w.started || errors.Is(err, session.ErrStreamFailed):
		w.send(eventError, errorEvent{
			Message:  err.Error(),
			Thinking: final.Thinking,
			Visible:  final.Visible,
		})
	default:
		writeError(c, err)
	}
}
