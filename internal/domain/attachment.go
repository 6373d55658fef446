package domain

import (
	"time"

	"github.com/google/uuid"
)

type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentGif   AttachmentKind = "gif"
	AttachmentFile  AttachmentKind = "file"
)

type Attachment struct {
	ID          uuid.UUID      `json:"id"`
	MessageID   uuid.UUID      `json:"message_id"`
	UploaderID  uuid.UUID      `json:"uploader_id"`
	Kind        AttachmentKind `json:"kind"`
	Bucket      string         `json:"bucket"`
	StoragePath string         `json:"storage_path"`
	MimeType    string         `json:"mime_type"`
	SizeBytes   int64          `json:"size_bytes"`
	Width       *int           `json:"width,omitempty"`
	Height      *int           `json:"height,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
