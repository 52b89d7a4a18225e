package catalog

import "time"

// Listing sale states. New listings start for sale; the owner flips the
// status once the book is sold.
const (
	StatusForSale = 0
	StatusSold    = 1
)

// Book represents one secondhand book listing
type Book struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Author         string    `json:"author,omitempty"`
	Publisher      string    `json:"publisher,omitempty"`
	Edition        string    `json:"edition,omitempty"`
	Category       string    `json:"category"`
	Condition      string    `json:"condition,omitempty"`
	Price          *float64  `json:"price,omitempty"`
	Description    string    `json:"description,omitempty"`
	Contact        string    `json:"contact,omitempty"`
	Status         int       `json:"status"`
	Owner          string    `json:"owner_id,omitempty"` // set once at creation, never altered
	SourceImageID  string    `json:"file_id,omitempty"`  // back-reference to the spine photo, if any
	RecognizedText string    `json:"ocr_text,omitempty"` // raw recognized text the listing came from
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UploadedImage is the metadata of one uploaded spine photo. Immutable
// after creation; the bytes live in the image store.
type UploadedImage struct {
	ID          string    `json:"file_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Owner       string    `json:"owner_id,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// BookUpdate carries the editable fields of a listing. Nil fields are
// left unchanged; owner, source image and created-at are not editable.
type BookUpdate struct {
	Title       *string  `json:"title,omitempty"`
	Author      *string  `json:"author,omitempty"`
	Publisher   *string  `json:"publisher,omitempty"`
	Edition     *string  `json:"edition,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Condition   *string  `json:"condition,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Description *string  `json:"description,omitempty"`
	Contact     *string  `json:"contact,omitempty"`
	Status      *int     `json:"status,omitempty"`
}
