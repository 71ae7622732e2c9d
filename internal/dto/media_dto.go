package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/monquest-api/internal/models"
)

// MediaResponse describes an uploaded media file and the markdown to embed it.
type MediaResponse struct {
	ID        uint      `json:"id"`
	URL       string    `json:"url"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
	Checksum  string    `json:"checksum"`
	Markdown  string    `json:"markdown"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMediaResponse converts a MediaAsset into a DTO.
func NewMediaResponse(asset models.MediaAsset) MediaResponse {
	markdown := "[" + asset.FileName + "](" + asset.URL + ")"
	if strings.HasPrefix(asset.MimeType, "image/") {
		markdown = "!" + markdown
	}

	return MediaResponse{
		ID:        asset.ID,
		URL:       asset.URL,
		FileName:  asset.FileName,
		MimeType:  asset.MimeType,
		SizeBytes: asset.SizeBytes,
		Checksum:  asset.Checksum,
		Markdown:  markdown,
		CreatedAt: asset.CreatedAt,
	}
}
