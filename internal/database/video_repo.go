package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/framegrab/framegrab/internal/models"
)

type VideoRepository struct {
	db *DB
}

func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Insert(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (id, title, original_name, stored_name, content_type, size, modified_at, upload_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.ExecContext(ctx, query,
		video.ID,
		video.Title,
		video.OriginalName,
		video.StoredName,
		video.ContentType,
		video.Size,
		video.ModifiedAt,
		video.UploadTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	query := `
		SELECT id, title, original_name, stored_name, content_type, size, modified_at, upload_time
		FROM videos WHERE id = ?`

	video := &models.Video{}
	err := r.db.conn.QueryRowContext(ctx, query, id).Scan(
		&video.ID,
		&video.Title,
		&video.OriginalName,
		&video.StoredName,
		&video.ContentType,
		&video.Size,
		&video.ModifiedAt,
		&video.UploadTime,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("video not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

func (r *VideoRepository) List(ctx context.Context) ([]models.Video, error) {
	query := `
		SELECT id, title, original_name, stored_name, content_type, size, modified_at, upload_time
		FROM videos ORDER BY upload_time DESC`

	rows, err := r.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var video models.Video
		if err := rows.Scan(
			&video.ID,
			&video.Title,
			&video.OriginalName,
			&video.StoredName,
			&video.ContentType,
			&video.Size,
			&video.ModifiedAt,
			&video.UploadTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

func (r *VideoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("video not found")
	}
	return nil
}
