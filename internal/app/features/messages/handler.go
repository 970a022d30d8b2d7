// internal/app/features/messages/handler.go
package messages

import (
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	"github.com/dalemusser/huddle/internal/app/messagelog"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/dalemusser/huddle/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the message log over HTTP.
type Handler struct {
	Messages *messagelog.Log
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(ml *messagelog.Log, logger *zap.Logger) *Handler {
	return &Handler{
		Messages: ml,
		ErrLog:   uierrors.NewErrorLogger(logger),
		Log:      logger,
	}
}

type sendRequest struct {
	Text string `json:"text"`
}

type listResponse struct {
	Messages []messagelog.Entry `json:"messages"`
}

// HandleSend posts a message to a group.
//
// POST /messages/{groupId}  {text}
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	gid, err := groupParam(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in sendRequest
	if err := uierrors.Decode(r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "send: bad body", err, "request body must be JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, _ := auth.CurrentPrincipal(r)
	sent, err := h.Messages.Send(ctx, gid, p.UserID, in.Text)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusCreated, sent)
}

// ServeList returns decrypted messages, oldest first.
//
// GET /messages/{groupId}?since=
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	gid, since, err := listParams(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, _ := auth.CurrentPrincipal(r)
	entries, err := h.Messages.List(ctx, gid, p.UserID, since)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, listResponse{Messages: entries})
}

// ServePoll reports how many messages arrived since the cursor.
//
// GET /messages/{groupId}/poll?since=
func (h *Handler) ServePoll(w http.ResponseWriter, r *http.Request) {
	gid, since, err := listParams(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, _ := auth.CurrentPrincipal(r)
	poll, err := h.Messages.PollSince(ctx, gid, p.UserID, since)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uierrors.JSON(w, http.StatusOK, poll)
}

func groupParam(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupId"))
	if err != nil {
		return primitive.NilObjectID, apperr.Invalid("invalid group id")
	}
	return id, nil
}

func listParams(r *http.Request) (primitive.ObjectID, *time.Time, error) {
	gid, err := groupParam(r)
	if err != nil {
		return gid, nil, err
	}
	since, err := ParseSince(query.Get(r, "since"))
	return gid, since, err
}

// ParseSince accepts an RFC 3339 timestamp or unix milliseconds. An empty
// value means no cursor.
func ParseSince(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms >= 0 {
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}
	return nil, apperr.Invalid("since must be an RFC 3339 timestamp or unix milliseconds")
}
