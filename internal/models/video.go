package models

import (
	"time"

	"github.com/google/uuid"
)

type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"-"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	ModifiedAt   time.Time `json:"modified_at"`
	UploadTime   time.Time `json:"upload_time"`
}

func NewVideo(title, originalName, storedName, contentType string, size int64, modifiedAt time.Time) *Video {
	return &Video{
		ID:           uuid.New().String(),
		Title:        title,
		OriginalName: originalName,
		StoredName:   storedName,
		ContentType:  contentType,
		Size:         size,
		ModifiedAt:   modifiedAt,
		UploadTime:   time.Now(),
	}
}
