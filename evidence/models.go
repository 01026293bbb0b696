package evidence

import "time"

// Modality names the four evidence stores.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityEmail Modality = "email"
	ModalityText  Modality = "text"
	ModalityVideo Modality = "video"
)

// Image mirrors the evidence.images table.
type Image struct {
	ID            int64
	UploaderToken string
	CaseID        int64
	S3Path        string
	ContentHash   string
	UploadedTs    time.Time
}

// Email mirrors the evidence.emails table. The content hash covers
// sender, recipient, and body.
type Email struct {
	ID            int64
	UploaderToken string
	CaseID        int64
	Sender        string
	Recipient     string
	Subject       string
	Body          string
	ContentHash   string
	UploadedTs    time.Time
}

// Text mirrors the evidence.texts table.
type Text struct {
	ID            int64
	UploaderToken string
	CaseID        int64
	Sender        string
	Recipient     string
	Body          string
	ContentHash   string
	UploadedTs    time.Time
}

// Video mirrors the evidence.videos table. Videos are keyed by their
// unique storage path rather than a content hash.
type Video struct {
	ID            int64
	UploaderToken string
	CaseID        int64
	S3Path        string
	UploadedTs    time.Time
}

// Item is the merged read model for listing a case's evidence.
type Item struct {
	ID            int64
	Modality      Modality
	UploaderToken string
	CaseID        int64
	UploadedTs    time.Time
}
