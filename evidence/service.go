package evidence

import (
	"context"
	"fmt"
)

// Service handles evidence ingestion.
type Service struct {
	repo *Repository
}

// NewService creates a new evidence service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// AttachImage hashes the raw image content and stores the evidence row.
// An identical re-upload by the same uploader for the same case fails with
// ErrDuplicate; callers wanting idempotent re-upload may treat that as
// success.
func (s *Service) AttachImage(ctx context.Context, caseID int64, uploaderToken, s3Path string, content []byte) (Image, error) {
	if len(content) == 0 {
		return Image{}, fmt.Errorf("evidence: empty image content")
	}
	return s.repo.InsertImage(ctx, Image{
		UploaderToken: uploaderToken,
		CaseID:        caseID,
		S3Path:        s3Path,
		ContentHash:   HashBytes(content),
	})
}

// AttachEmail stores email evidence hashed over sender, recipient, and body.
func (s *Service) AttachEmail(ctx context.Context, caseID int64, uploaderToken, sender, recipient, subject, body string) (Email, error) {
	if sender == "" || recipient == "" {
		return Email{}, fmt.Errorf("evidence: sender and recipient are required")
	}
	return s.repo.InsertEmail(ctx, Email{
		UploaderToken: uploaderToken,
		CaseID:        caseID,
		Sender:        sender,
		Recipient:     recipient,
		Subject:       subject,
		Body:          body,
		ContentHash:   HashMessage(sender, recipient, body),
	})
}

// AttachText stores text-message evidence hashed over sender, recipient,
// and body.
func (s *Service) AttachText(ctx context.Context, caseID int64, uploaderToken, sender, recipient, body string) (Text, error) {
	if sender == "" || recipient == "" {
		return Text{}, fmt.Errorf("evidence: sender and recipient are required")
	}
	return s.repo.InsertText(ctx, Text{
		UploaderToken: uploaderToken,
		CaseID:        caseID,
		Sender:        sender,
		Recipient:     recipient,
		Body:          body,
		ContentHash:   HashMessage(sender, recipient, body),
	})
}

// AttachVideo stores video evidence keyed by its storage path, which is
// trusted to be unique per upload.
func (s *Service) AttachVideo(ctx context.Context, caseID int64, uploaderToken, s3Path string) (Video, error) {
	if s3Path == "" {
		return Video{}, fmt.Errorf("evidence: s3 path is required")
	}
	return s.repo.InsertVideo(ctx, Video{
		UploaderToken: uploaderToken,
		CaseID:        caseID,
		S3Path:        s3Path,
	})
}

// ListByCase returns every piece of evidence attached to a case.
func (s *Service) ListByCase(ctx context.Context, caseID int64) ([]Item, error) {
	return s.repo.ListByCase(ctx, caseID)
}
