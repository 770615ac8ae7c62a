package resolver

import (
	"strings"

	"SupplyGuard/internal/backend"
)

// DefaultPage is reported when the page path has no usable segment
const DefaultPage = "dashboard"

// DefaultUserID is reported when no user id is configured
const DefaultUserID = "current-user"

// ContextSource produces the Context snapshot attached to each request
type ContextSource interface {
	Snapshot() (backend.ChatContext, error)
}

// StaticContext reports fixed values taken from configuration
type StaticContext struct {
	PagePath          string
	UserID            string
	TotalSuppliers    int
	CriticalSuppliers int
	ActiveAlerts      int
	RecentActivity    []string
}

// Snapshot implements ContextSource
func (c StaticContext) Snapshot() (backend.ChatContext, error) {
	userID := c.UserID
	if userID == "" {
		userID = DefaultUserID
	}
	activity := make([]string, len(c.RecentActivity))
	copy(activity, c.RecentActivity)

	return backend.ChatContext{
		CurrentPage:       CurrentPage(c.PagePath),
		UserID:            userID,
		TotalSuppliers:    c.TotalSuppliers,
		CriticalSuppliers: c.CriticalSuppliers,
		ActiveAlerts:      c.ActiveAlerts,
		RecentActivity:    activity,
	}, nil
}

// CurrentPage returns the last segment of a page path, or DefaultPage when
// the path ends in a slash or is empty.
func CurrentPage(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if path == "" {
		return DefaultPage
	}
	return path
}
