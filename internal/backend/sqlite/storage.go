package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
)

// Object is a stored file plus the headers it was uploaded with.
type Object struct {
	Bucket       string
	Key          string
	ContentType  string
	CacheControl string
	Data         []byte
	UpdatedAt    time.Time
}

// Upload writes data under bucket/key.
//
// Without opts.Upsert an existing key is left untouched and ErrObjectExists
// is returned, matching the hosted storage API. The insert uses
// ON CONFLICT DO NOTHING and checks RowsAffected instead of matching on
// driver error codes.
func (db *DB) Upload(ctx context.Context, bucket, key string, data []byte, opts backend.UploadOptions) error {
	if bucket == "" || key == "" {
		return fmt.Errorf("sqlite: upload needs a bucket and a key")
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	now := time.Now().UTC()

	if opts.Upsert {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO storage_objects (bucket, key, content_type, cache_control, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (bucket, key) DO UPDATE SET
				content_type  = excluded.content_type,
				cache_control = excluded.cache_control,
				data          = excluded.data,
				updated_at    = excluded.updated_at`,
			bucket, key, contentType, opts.CacheControl, data, now, now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: upserting object %s/%s: %w", bucket, key, err)
		}
		return nil
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO storage_objects (bucket, key, content_type, cache_control, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (bucket, key) DO NOTHING`,
		bucket, key, contentType, opts.CacheControl, data, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: uploading object %s/%s: %w", bucket, key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking upload of %s/%s: %w", bucket, key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", backend.ErrObjectExists, bucket, key)
	}
	return nil
}

// Object loads a stored file. A missing key returns apperror.ErrNotFound.
func (db *DB) Object(ctx context.Context, bucket, key string) (*Object, error) {
	obj := &Object{Bucket: bucket, Key: key}
	err := db.conn.QueryRowContext(ctx, `
		SELECT content_type, cache_control, data, updated_at
		FROM storage_objects
		WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&obj.ContentType, &obj.CacheControl, &obj.Data, &obj.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("object", bucket+"/"+key)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading object %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// PublicURL returns {base}/storage/{bucket}/{key}.
func (db *DB) PublicURL(bucket, key string) string {
	return db.publicBaseURL + "/storage/" + backend.ObjectPath(bucket, key)
}
