package chat

import (
	"context"
	"time"

	"vachat/internal/app/store"
)

const (
	// MaxAttachmentsCount defines the maximum number of file attachments allowed per message.
	MaxAttachmentsCount = 3

	// PresignedURLDuration is the fixed duration for which attachment download URLs are valid.
	PresignedURLDuration = 5 * time.Minute
)

// Attachment is the client-facing view of a file attached to a message,
// carrying a short-lived presigned download URL instead of the raw S3 key.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// buildAttachments resolves file rows into attachment views. A presign
// failure degrades to an attachment without a URL rather than failing the
// message: the file reference is still persisted and the client can refetch.
func (h *Handlers) buildAttachments(ctx context.Context, files []store.File) []Attachment {
	if len(files) == 0 {
		return nil
	}

	attachments := make([]Attachment, 0, len(files))
	for _, f := range files {
		attachment := Attachment{
			ID:       f.ID,
			Name:     f.Name,
			MimeType: f.MimeType,
			Size:     f.Size,
		}

		url, err := h.storage.PresignDownload(ctx, f.Key, PresignedURLDuration)
		if err != nil {
			h.logger.Warn().Err(err).Str("file_id", f.ID).Msg("Failed to presign attachment URL.")
		} else {
			attachment.URL = url
		}

		attachments = append(attachments, attachment)
	}

	return attachments
}
