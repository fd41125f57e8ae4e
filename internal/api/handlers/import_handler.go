package handlers

import (
	"net/http"

	"github.com/andresuchdata/stockcast/internal/ingest"
	"github.com/gin-gonic/gin"
)

type ImportHandler struct {
	importer *ingest.Importer
}

func NewImportHandler(importer *ingest.Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// ListFiles shows the exports currently visible in the import source.
func (h *ImportHandler) ListFiles(c *gin.Context) {
	files, err := h.importer.Source().ListFiles(c.Request.Context())
	if err != nil {
		respondError(c, "failed to list import files", err)
		return
	}
	if files == nil {
		files = []ingest.File{}
	}

	c.JSON(http.StatusOK, gin.H{
		"source": h.importer.Source().Name(),
		"files":  files,
	})
}

// Sync imports new exports now instead of waiting for the watcher.
func (h *ImportHandler) Sync(c *gin.Context) {
	result, err := h.importer.Sync(c.Request.Context())
	if err != nil {
		respondError(c, "failed to sync imports", err)
		return
	}

	status := http.StatusOK
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}
