package models

import "time"

// HeaderText is one entry in the append-only letterhead history. The most
// recent entry is the active header.
type HeaderText struct {
	ID        string    `db:"id" json:"id"`
	Text      string    `db:"text" json:"text"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
