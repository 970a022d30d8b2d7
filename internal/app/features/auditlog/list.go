// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/huddle/internal/app/features/errors"
	"github.com/dalemusser/huddle/internal/app/store/audit"
	"github.com/dalemusser/huddle/internal/app/system/apperr"
	"github.com/dalemusser/huddle/internal/app/system/auth"
	"github.com/dalemusser/huddle/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

// ServeMine handles GET /audit/me - events where the caller is the affected user.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	filter, page, err := parseFilter(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	uid := p.UserID
	filter.UserID = &uid
	h.serve(w, r, filter, page)
}

// ServeGroup handles GET /audit/groups/{id} - a group's events, owner only.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.CurrentPrincipal(r)
	gid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Invalid("invalid group id"))
		return
	}
	filter, page, err := parseFilter(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if _, err := h.Engine.RequireOwner(ctx, gid, p.UserID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	filter.GroupID = &gid
	h.serve(w, r, filter, page)
}

// parseFilter reads category, event_type, start_date, end_date and page.
// Dates are YYYY-MM-DD in UTC; end_date covers the whole day.
func parseFilter(r *http.Request) (audit.QueryFilter, int, error) {
	category := strings.TrimSpace(query.Get(r, "category"))
	if !validCategory(category) {
		return audit.QueryFilter{}, 0, apperr.Invalid("category: unknown value %q", category)
	}

	page := 1
	if s := query.Get(r, "page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return audit.QueryFilter{}, 0, apperr.Invalid("page: must be a positive integer")
		}
		page = n
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: strings.TrimSpace(query.Get(r, "event_type")),
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}

	if s := strings.TrimSpace(query.Get(r, "start_date")); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return audit.QueryFilter{}, 0, apperr.Invalid("start_date: expected YYYY-MM-DD")
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(query.Get(r, "end_date")); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return audit.QueryFilter{}, 0, apperr.Invalid("end_date: expected YYYY-MM-DD")
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}
	return filter, page, nil
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, filter audit.QueryFilter, page int) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	events, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events", err)
		return
	}
	total, err := h.Audit.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count audit events", err)
		return
	}

	// Collect unique user IDs for name resolution
	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, e := range events {
		for _, id := range []*primitive.ObjectID{e.ActorID, e.UserID} {
			if id == nil {
				continue
			}
			if _, ok := seen[*id]; !ok {
				seen[*id] = struct{}{}
				ids = append(ids, *id)
			}
		}
	}
	names, err := h.Users.Identities(ctx, ids)
	if err != nil {
		h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
	}
	nameOf := func(id *primitive.ObjectID) string {
		if id == nil {
			return ""
		}
		if ident, ok := names[*id]; ok {
			return ident.FullName
		}
		return id.Hex()
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, listItem{
			ID:         e.ID.Hex(),
			Timestamp:  e.Timestamp,
			Category:   e.Category,
			EventType:  e.EventType,
			ActorName:  nameOf(e.ActorID),
			TargetName: nameOf(e.UserID),
			Success:    e.Success,
			Details:    e.Details,
		})
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	uierrors.JSON(w, http.StatusOK, listResponse{
		Events:     items,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	})
}
