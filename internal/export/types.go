// Package export writes CSV snapshots of CRM entities to object storage.
package export

import (
	"errors"
	"time"
)

// Kind names an exportable entity collection.
type Kind string

const (
	KindTasks    Kind = "tasks"
	KindDeals    Kind = "deals"
	KindContacts Kind = "contacts"
)

// Object describes a stored export.
type Object struct {
	Key         string    `json:"key"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Download is a retrieved export payload.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

var (
	// ErrNotFound indicates no export exists under the requested key.
	ErrNotFound = errors.New("export not found")
	// ErrUnavailable indicates the object store is not configured or unreachable.
	ErrUnavailable = errors.New("export storage unavailable")
)
