// Package api holds the DreamColor wire messages, the JSON codec and the
// service descriptor shared by the daemon and its clients.
package api

import "time"

// Empty is the request or response of calls without parameters.
type Empty struct{}

// Image is an inline image.
type Image struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Entitlement is the credit balance and the free-run state.
type Entitlement struct {
	Credits            int       `json:"credits"`
	IsPaidUser         bool      `json:"is_paid_user"`
	LastFreeGeneration time.Time `json:"last_free_generation"`
	FreeAllowed        bool      `json:"free_allowed"`
	// FreeWait is "{h}h {m}m" while the free run is cooling down.
	FreeWait string `json:"free_wait,omitempty"`
}

type PurchaseRequest struct {
	Pack string `json:"pack"`
}

type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Adventure is the in-progress book.
type Adventure struct {
	ChildName    string  `json:"child_name"`
	Theme        string  `json:"theme"`
	Title        string  `json:"title"`
	Transcript   []Turn  `json:"transcript"`
	HasReference bool    `json:"has_reference"`
	Pages        []Image `json:"pages,omitempty"`
	SavedBookID  string  `json:"saved_book_id,omitempty"`
}

type SetChildNameRequest struct {
	Name string `json:"name"`
}

type SetThemeRequest struct {
	Theme string `json:"theme"`
}

// SetReferenceRequest sets the reference photo; a nil Image clears it.
type SetReferenceRequest struct {
	Image *Image `json:"image,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply Turn `json:"reply"`
	// Ready is set once the assistant is happy to start drawing.
	Ready bool `json:"ready"`
}

type SpeakRequest struct {
	Text string `json:"text"`
}

type SpeakResponse struct {
	Audio    []byte `json:"audio"`
	MIMEType string `json:"mime_type"`
}

// Job is a generation run snapshot. Pages are read from the adventure once
// the run completes.
type Job struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	Scene         int       `json:"scene"`
	Total         int       `json:"total"`
	Scenes        []string  `json:"scenes,omitempty"`
	PageCount     int       `json:"page_count"`
	MissingScenes []int     `json:"missing_scenes,omitempty"`
	RetryCount    int       `json:"retry_count"`
	Error         string    `json:"error,omitempty"`
	Refill        bool      `json:"refill"`
	Canceled      bool      `json:"canceled"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitzero"`
}

type RegenerateRequest struct {
	Index       int    `json:"index"`
	Description string `json:"description,omitempty"`
}

// EditRequest bakes an edit into page Index. Brightness and Contrast are
// percentages where 100 is unchanged.
type EditRequest struct {
	Index      int     `json:"index"`
	Rotation   float64 `json:"rotation"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
}

type ImageResponse struct {
	Index int   `json:"index"`
	Image Image `json:"image"`
}

// Book is a gallery entry. List responses omit the page images.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Theme       string    `json:"theme"`
	CreatedDate string    `json:"created_date"`
	CreatedAt   time.Time `json:"created_at"`
	PageCount   int       `json:"page_count"`
	Cover       *Image    `json:"cover,omitempty"`
	Pages       []Image   `json:"pages,omitempty"`
}

type BookRequest struct {
	ID string `json:"id"`
}

type BookList struct {
	Books []Book `json:"books"`
}

// ExportRequest selects the layout. Unset fields take the export defaults.
type ExportRequest struct {
	PageSize         string `json:"page_size,omitempty"`
	Orientation      string `json:"orientation,omitempty"`
	Margin           string `json:"margin,omitempty"`
	IncludeTitlePage *bool  `json:"include_title_page,omitempty"`
	ShowPageNumbers  *bool  `json:"show_page_numbers,omitempty"`
}

type ExportResponse struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	Size   int    `json:"size"`
	Pages  int    `json:"pages"`
	// Path is the download path on the HTTP surface.
	Path string `json:"path"`
}

type SetAPIKeyRequest struct {
	Key string `json:"key"`
}

type CredentialStatus struct {
	Configured    bool `json:"configured"`
	PromptPending bool `json:"prompt_pending"`
}
