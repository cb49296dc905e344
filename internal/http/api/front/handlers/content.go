package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/storage"
)

// ContentHandler accepts gift content uploads from shops.
type ContentHandler struct {
	store    *storage.Store
	maxBytes int64
}

// NewContentHandler constructs a ContentHandler. A nil store disables uploads.
func NewContentHandler(store *storage.Store, maxBytes int64) *ContentHandler {
	return &ContentHandler{store: store, maxBytes: maxBytes}
}

// Upload stores a multipart "file" field and returns its content reference.
func (h *ContentHandler) Upload(c *gin.Context) {
	shopID := getShopID(c)
	if shopID == 0 {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.store == nil {
		response.Fail(c, http.StatusServiceUnavailable, "content storage is not configured")
		return
	}

	file, errFile := c.FormFile("file")
	if errFile != nil {
		response.Fail(c, http.StatusBadRequest, "file is required")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
		return
	}
	src, errOpen := file.Open()
	if errOpen != nil {
		response.Fail(c, http.StatusBadRequest, "read file failed")
		return
	}
	defer func() { _ = src.Close() }()

	ref, errUpload := h.store.Upload(c.Request.Context(), shopID, file.Filename, src, file.Size, file.Header.Get("Content-Type"))
	if errUpload != nil {
		if errors.Is(errUpload, storage.ErrTooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, errUpload.Error())
			return
		}
		log.WithError(errUpload).WithField("shop_id", shopID).Error("content upload failed")
		response.Fail(c, http.StatusBadGateway, "upload failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"content_ref": ref})
}
