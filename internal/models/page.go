package models

import "time"

// Page is a CMS content entry owned by the user who created it.
type Page struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Slug      string    `db:"slug" json:"slug"`
	Body      string    `db:"body" json:"body"`
	Status    string    `db:"status" json:"status"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PageStatusDraft     = "draft"
	PageStatusPublished = "published"
)

// PageFilter captures page listing filters.
type PageFilter struct {
	OwnerID  string
	Status   string
	Search   string
	Page     int
	PageSize int
}
