package main

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lanbeam/lanbeam/internal/blob"
	"github.com/lanbeam/lanbeam/internal/ingest"
	"github.com/lanbeam/lanbeam/pkg/types"
)

// handleUpload streams the first file part of a multipart body through
// the ingest pipeline. The body is never buffered whole in memory.
func handleUpload(pipeline *ingest.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		reader, err := c.Request.MultipartReader()
		if err != nil {
			c.JSON(http.StatusBadRequest, types.Error("No file provided"))
			return
		}

		part, err := nextFilePart(reader)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.Error("No file provided"))
			return
		}
		defer part.Close()

		record, err := pipeline.Ingest(c.Request.Context(), part.FileName(), part)
		switch {
		case errors.Is(err, ingest.ErrEmptyUpload):
			c.JSON(http.StatusBadRequest, types.Error("No file data received"))
		case errors.Is(err, ingest.ErrInvalidFilename):
			c.JSON(http.StatusBadRequest, types.Error("Invalid filename"))
		case err != nil:
			log.Error().Err(err).Msg("upload failed")
			c.JSON(http.StatusInternalServerError, types.Error("Failed to store file"))
		default:
			c.JSON(http.StatusCreated, types.Success("File uploaded successfully", record))
		}
	}
}

// nextFilePart returns the first part of the stream that carries a file.
// Non-file form fields are skipped.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// handleDownload streams stored bytes back to the caller in bounded
// chunks with download headers derived from the original filename.
func handleDownload(store *blob.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		record, content, err := store.OpenRead(id)
		switch {
		case errors.Is(err, blob.ErrNotFound):
			c.JSON(http.StatusNotFound, types.Error("File not found"))
			return
		case errors.Is(err, blob.ErrInconsistent):
			c.JSON(http.StatusInternalServerError, types.Error("Stored file is missing"))
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, types.Error("Failed to read file"))
			return
		}
		defer content.Close()

		contentType := mime.TypeByExtension(filepath.Ext(record.Name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		extraHeaders := map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", record.Name),
		}
		c.DataFromReader(http.StatusOK, record.Size, contentType, content, extraHeaders)
	}
}

// handleListFiles returns a snapshot of the current index.
func handleListFiles(store *blob.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, types.Success("Files retrieved successfully", store.List()))
	}
}
