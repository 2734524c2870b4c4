// Package model defines domain entities used by services and repositories.
package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Pack is a purchasable credit bundle.
type Pack string

const (
	PackSingle Pack = "single" // one book: 5 pages + cover
	PackParty  Pack = "party"  // five books
)

// Credits returns the number of credits the pack grants, or 0 for an unknown pack.
func (p Pack) Credits() int {
	switch p {
	case PackSingle:
		return 6
	case PackParty:
		return 30
	}
	return 0
}

// EntitlementState is the persisted credit balance and free-use cooldown.
type EntitlementState struct {
	Credits            int       `json:"credits"`
	IsPaidUser         bool      `json:"is_paid_user"` // sticky once true
	LastFreeGeneration time.Time `json:"last_free_generation"`
}

// Eligibility reports whether a free generation is currently allowed.
type Eligibility struct {
	Allowed bool
	Wait    time.Duration // zero when allowed
	Hours   int
	Minutes int
}

// WaitString formats the remaining wait as "{h}h {m}m".
func (e Eligibility) WaitString() string {
	if e.Allowed {
		return ""
	}
	return fmt.Sprintf("%dh %dm", e.Hours, e.Minutes)
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message of the brainstorming transcript.
type ConversationTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Image is an inline image payload.
type Image struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool { return len(i.Data) == 0 }

// SavedBook is an assembled book kept in the gallery.
type SavedBook struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Theme       string    `json:"theme"`
	CreatedDate string    `json:"created_date"` // display date, e.g. "Oct 17"
	CreatedAt   time.Time `json:"created_at"`
	CoverImage  Image     `json:"cover_image"`
	Pages       []Image   `json:"pages"`
}

// BookDraft is the caller-provided part of a SavedBook.
type BookDraft struct {
	Title      string
	Theme      string
	CoverImage Image // defaults to Pages[0]
	Pages      []Image
}

// Tokens is an issued API access token. A zero ExpiresAt means no expiry.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Profile holds user preferences that survive restarts.
type Profile struct {
	ChildName string `json:"child_name"`
}

// PageSize names a printable paper format.
type PageSize string

const (
	PageA4     PageSize = "a4"
	PageLetter PageSize = "letter"
)

// Orientation of the printed page.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// MarginPreset selects the page margin.
type MarginPreset string

const (
	MarginNone   MarginPreset = "none"
	MarginSmall  MarginPreset = "small"
	MarginNormal MarginPreset = "normal"
)

// Millimeters returns the margin size in mm.
func (m MarginPreset) Millimeters() float64 {
	switch m {
	case MarginSmall:
		return 10
	case MarginNormal:
		return 20
	}
	return 0
}

// LayoutConfig configures document export.
type LayoutConfig struct {
	PageSize         PageSize     `json:"page_size"`
	Orientation      Orientation  `json:"orientation"`
	Margin           MarginPreset `json:"margin"`
	IncludeTitlePage bool         `json:"include_title_page"`
	ShowPageNumbers  bool         `json:"show_page_numbers"`
}

// DefaultLayout mirrors the export dialog defaults.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		PageSize:         PageA4,
		Orientation:      Portrait,
		Margin:           MarginNormal,
		IncludeTitlePage: true,
		ShowPageNumbers:  true,
	}
}

// DocumentMeta is the metadata printed on the title page.
type DocumentMeta struct {
	Theme     string
	ChildName string
	Date      time.Time
}
