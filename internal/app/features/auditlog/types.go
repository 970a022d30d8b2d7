// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/huddle/internal/app/store/audit"
)

// listItem is a single audit event as returned to clients. IP and user
// agent stay server-side.
type listItem struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Category   string            `json:"category"`
	EventType  string            `json:"event_type"`
	ActorName  string            `json:"actor_name,omitempty"`
	TargetName string            `json:"target_name,omitempty"`
	Success    bool              `json:"success"`
	Details    map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Events     []listItem `json:"events"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	Total      int64      `json:"total"`
}

// validCategory reports whether c is empty or a known category.
func validCategory(c string) bool {
	switch c {
	case "", audit.CategoryAuth, audit.CategoryMembership:
		return true
	}
	return false
}
