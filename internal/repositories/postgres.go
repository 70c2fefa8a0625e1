package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidgallery/backend/internal/db"
	"github.com/vidgallery/backend/internal/models"
	"github.com/vidgallery/backend/internal/thumbnails"
)

const userColumns = `id, email, password_hash, display_name, share_token, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for user profiles.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new profile. Duplicate ids, password-account emails and
// share tokens are reported as ErrConflict.
func (r *PostgresUserRepository) Create(ctx context.Context, profile models.UserProfile) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, profile.UID, profile.Email, profile.PasswordHash, profile.DisplayName, profile.ShareToken, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// CreateIfAbsent inserts the profile unless one already exists for its id and
// returns the stored row. The boolean reports whether this call created it.
// Concurrent callers for the same id converge on a single row.
func (r *PostgresUserRepository) CreateIfAbsent(ctx context.Context, profile models.UserProfile) (models.UserProfile, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserProfile{}, false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING
    `, profile.UID, profile.Email, profile.PasswordHash, profile.DisplayName, profile.ShareToken, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.UserProfile{}, false, ErrConflict
		}
		return models.UserProfile{}, false, fmt.Errorf("insert user if absent: %w", err)
	}

	stored, err := scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, profile.UID))
	if err != nil {
		return models.UserProfile{}, false, err
	}

	return stored, tag.RowsAffected() == 1, nil
}

// FindByID fetches a profile by its uid.
func (r *PostgresUserRepository) FindByID(ctx context.Context, uid string) (models.UserProfile, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid)
}

// FindByEmail fetches the password account registered with an email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.UserProfile, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND password_hash <> ''`, email)
}

// FindByShareToken fetches the profile owning a share token.
func (r *PostgresUserRepository) FindByShareToken(ctx context.Context, token string) (models.UserProfile, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE share_token = $1 LIMIT 1`, token)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg string) (models.UserProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanUser(conn.QueryRow(ctx, query, arg))
}

func scanUser(row pgx.Row) (models.UserProfile, error) {
	var user models.UserProfile
	if err := row.Scan(&user.UID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.ShareToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserProfile{}, ErrNotFound
		}
		return models.UserProfile{}, fmt.Errorf("select user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

const videoColumns = `id, user_id, youtube_url, youtube_video_id, title, thumbnail_url, tags, created_at, thumbnail_asset_url, thumbnail_asset_status`

// PostgresVideoRepository provides PostgreSQL-backed persistence for gallery videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tags := video.Tags
	if tags == nil {
		tags = []string{}
	}
	status := video.ThumbnailAssetStatus
	if status == "" {
		status = models.AssetStatusPending
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (`+videoColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, video.ID, video.UserID, video.YoutubeURL, video.YoutubeVideoID, video.Title, video.ThumbnailURL, tags, video.CreatedAt, video.ThumbnailAssetURL, status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrConflict
			case pgForeignKeyViolation:
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// ListByOwner returns every video owned by the user in store order.
// Callers apply their own ordering.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, userID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+videoColumns+` FROM videos WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// UpdateDetails overwrites the title and tags of a video owned by userID.
func (r *PostgresVideoRepository) UpdateDetails(ctx context.Context, userID, videoID, title string, tags []string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if tags == nil {
		tags = []string{}
	}

	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET title = $3, tags = $4
        WHERE id = $1 AND user_id = $2
        RETURNING `+videoColumns, videoID, userID, title, tags)

	return scanVideo(row)
}

// Delete removes a video owned by userID.
func (r *PostgresVideoRepository) Delete(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1 AND user_id = $2`, videoID, userID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkThumbnailReady records the location of a mirrored thumbnail.
func (r *PostgresVideoRepository) MarkThumbnailReady(ctx context.Context, videoID, location string) error {
	return r.setThumbnailStatus(ctx, videoID, models.AssetStatusReady, location)
}

// MarkThumbnailFailed records a failed mirror attempt.
func (r *PostgresVideoRepository) MarkThumbnailFailed(ctx context.Context, videoID string) error {
	return r.setThumbnailStatus(ctx, videoID, models.AssetStatusFailed, "")
}

func (r *PostgresVideoRepository) setThumbnailStatus(ctx context.Context, videoID, status, location string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET thumbnail_asset_status = $2,
            thumbnail_asset_url = $3
        WHERE id = $1
    `, videoID, status, location)
	if err != nil {
		return fmt.Errorf("update thumbnail status %s: %w", status, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	if err := row.Scan(&video.ID, &video.UserID, &video.YoutubeURL, &video.YoutubeVideoID, &video.Title, &video.ThumbnailURL, &video.Tags, &video.CreatedAt, &video.ThumbnailAssetURL, &video.ThumbnailAssetStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("scan video: %w", err)
	}
	if video.Tags == nil {
		video.Tags = []string{}
	}
	video.CreatedAt = video.CreatedAt.UTC()
	return video, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ thumbnails.StatusUpdater = (*PostgresVideoRepository)(nil)
