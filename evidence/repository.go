package evidence

import (
	"context"
	"errors"
	"fmt"

	"escrowdesk/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrDuplicate signals identical evidence was already submitted by this
	// uploader for this case. Pure deduplication, not a business error.
	ErrDuplicate = errors.New("evidence: duplicate submission")
	// ErrUnknownCase signals the dispute case does not exist.
	ErrUnknownCase = errors.New("evidence: unknown case")
	// ErrUnknownPrincipal signals the uploader token has no credential.
	ErrUnknownPrincipal = errors.New("evidence: unknown principal")
)

// Repository handles data access for the four evidence stores.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed evidence repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func classifyInsertErr(err error, caseConstraint string) error {
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	if db.IsForeignKeyViolation(err, caseConstraint) {
		return ErrUnknownCase
	}
	if db.IsForeignKeyViolation(err, "") {
		return ErrUnknownPrincipal
	}
	return nil
}

// InsertImage stores image evidence deduplicated by content hash.
func (r *Repository) InsertImage(ctx context.Context, img Image) (Image, error) {
	const insertSQL = `
		INSERT INTO evidence.images (user_token, case_id, s3_path, content_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_ts
	`

	err := r.pool.QueryRow(ctx, insertSQL, img.UploaderToken, img.CaseID, img.S3Path, img.ContentHash).
		Scan(&img.ID, &img.UploadedTs)
	if err != nil {
		if mapped := classifyInsertErr(err, "images_case_id_fkey"); mapped != nil {
			return Image{}, mapped
		}
		return Image{}, fmt.Errorf("evidence: insert image: %w", err)
	}
	return img, nil
}

// InsertEmail stores email evidence deduplicated by sender, recipient, and
// content hash.
func (r *Repository) InsertEmail(ctx context.Context, em Email) (Email, error) {
	const insertSQL = `
		INSERT INTO evidence.emails (user_token, case_id, sender, recipient, subject, body, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, uploaded_ts
	`

	err := r.pool.QueryRow(ctx, insertSQL,
		em.UploaderToken, em.CaseID, em.Sender, em.Recipient, em.Subject, em.Body, em.ContentHash,
	).Scan(&em.ID, &em.UploadedTs)
	if err != nil {
		if mapped := classifyInsertErr(err, "emails_case_id_fkey"); mapped != nil {
			return Email{}, mapped
		}
		return Email{}, fmt.Errorf("evidence: insert email: %w", err)
	}
	return em, nil
}

// InsertText stores text-message evidence deduplicated by sender,
// recipient, and content hash.
func (r *Repository) InsertText(ctx context.Context, tm Text) (Text, error) {
	const insertSQL = `
		INSERT INTO evidence.texts (user_token, case_id, sender, recipient, body, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uploaded_ts
	`

	err := r.pool.QueryRow(ctx, insertSQL,
		tm.UploaderToken, tm.CaseID, tm.Sender, tm.Recipient, tm.Body, tm.ContentHash,
	).Scan(&tm.ID, &tm.UploadedTs)
	if err != nil {
		if mapped := classifyInsertErr(err, "texts_case_id_fkey"); mapped != nil {
			return Text{}, mapped
		}
		return Text{}, fmt.Errorf("evidence: insert text: %w", err)
	}
	return tm, nil
}

// InsertVideo stores video evidence keyed by its unique storage path.
func (r *Repository) InsertVideo(ctx context.Context, v Video) (Video, error) {
	const insertSQL = `
		INSERT INTO evidence.videos (user_token, case_id, s3_path)
		VALUES ($1, $2, $3)
		RETURNING id, uploaded_ts
	`

	err := r.pool.QueryRow(ctx, insertSQL, v.UploaderToken, v.CaseID, v.S3Path).
		Scan(&v.ID, &v.UploadedTs)
	if err != nil {
		if mapped := classifyInsertErr(err, "videos_case_id_fkey"); mapped != nil {
			return Video{}, mapped
		}
		return Video{}, fmt.Errorf("evidence: insert video: %w", err)
	}
	return v, nil
}

// ListByCase returns every piece of evidence attached to a case across all
// four modalities, oldest first.
func (r *Repository) ListByCase(ctx context.Context, caseID int64) ([]Item, error) {
	const selectSQL = `
		SELECT id, 'image' AS modality, user_token, case_id, uploaded_ts FROM evidence.images WHERE case_id = $1
		UNION ALL
		SELECT id, 'email', user_token, case_id, uploaded_ts FROM evidence.emails WHERE case_id = $1
		UNION ALL
		SELECT id, 'text', user_token, case_id, uploaded_ts FROM evidence.texts WHERE case_id = $1
		UNION ALL
		SELECT id, 'video', user_token, case_id, uploaded_ts FROM evidence.videos WHERE case_id = $1
		ORDER BY uploaded_ts ASC, modality ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, selectSQL, caseID)
	if err != nil {
		return nil, fmt.Errorf("evidence: list by case: %w", err)
	}
	defer rows.Close()

	out := make([]Item, 0, 8)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Modality, &it.UploaderToken, &it.CaseID, &it.UploadedTs); err != nil {
			return nil, fmt.Errorf("evidence: scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate items: %w", err)
	}
	return out, nil
}
