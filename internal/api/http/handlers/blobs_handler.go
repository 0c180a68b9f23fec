package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/store"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// BlobsHandler serves attachment bytes. Attachment URLs are handed out in
// comments and must resolve without a session, matching public object storage.
type BlobsHandler struct {
	blobs store.BlobStore
}

// NewBlobsHandler constructs handler.
func NewBlobsHandler(blobs store.BlobStore) *BlobsHandler {
	return &BlobsHandler{blobs: blobs}
}

// GetBlob GET /blobs/:key.
func (h *BlobsHandler) GetBlob(c *fiber.Ctx) error {
	data, contentType, err := h.blobs.Open(c.Context(), c.Params("key"))
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NewNotFound("blob", map[string]any{"key": c.Params("key")})
	}
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}
