package consent

import (
	"time"
)

// Category identifies a class of data processing the user can consent to.
type Category string

const (
	CategoryEssential   Category = "essential"
	CategoryAnalytics   Category = "analytics"
	CategoryMarketing   Category = "marketing"
	CategoryAdvertising Category = "advertising"
	CategoryLocation    Category = "location"
)

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryEssential,
		CategoryAnalytics,
		CategoryMarketing,
		CategoryAdvertising,
		CategoryLocation,
	}
}

// Record is the per-user consent state. Essential is always true while the
// account is active and cannot be revoked.
type Record struct {
	UserID      string
	Essential   bool
	Analytics   bool
	Marketing   bool
	Advertising bool
	Location    bool
	UpdatedAt   time.Time
	Version     string
}

// Granted reports whether the record grants the given category.
func (r *Record) Granted(c Category) bool {
	if r == nil {
		return false
	}

	switch c {
	case CategoryEssential:
		return r.Essential
	case CategoryAnalytics:
		return r.Analytics
	case CategoryMarketing:
		return r.Marketing
	case CategoryAdvertising:
		return r.Advertising
	case CategoryLocation:
		return r.Location
	default:
		return false
	}
}

// Update is a partial consent change. Nil fields keep the current value.
// Essential is absent on purpose: it cannot be changed through an update.
type Update struct {
	Analytics   *bool
	Marketing   *bool
	Advertising *bool
	Location    *bool
	Version     string
}

// Change records a single category transition for the audit trail.
type Change struct {
	Category Category `json:"category"`
	Old      bool     `json:"old"`
	New      bool     `json:"new"`
}

// AuditEvent is published on every consent mutation. It carries category
// transitions only, never profile data; UserID is a salted identifier hash,
// not the raw id.
type AuditEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Changes   []Change  `json:"changes"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
