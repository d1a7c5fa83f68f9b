package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recanalysis/internal/models"
	"recanalysis/pkg/database"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

const feedbackTable = "feedback"

var feedbackColumns = []string{"timestamp", "form_type", "rag_context", "original_response", "corrected_response"}

// FeedbackRepository is the append-only log of human corrections.
type FeedbackRepository struct {
	db     *database.DB
	logger *zap.Logger
}

func NewFeedbackRepository(db *database.DB, logger *zap.Logger) *FeedbackRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackRepository{
		db:     db,
		logger: logger,
	}
}

func (r *FeedbackRepository) placeholders() squirrel.PlaceholderFormat {
	if r.db.Driver == database.DriverPostgres {
		return squirrel.Dollar
	}
	return squirrel.Question
}

// Migrate creates the feedback table if it does not exist.
func (r *FeedbackRepository) Migrate(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.db.Driver == database.DriverPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	timestamp TEXT NOT NULL,
	form_type TEXT NOT NULL,
	rag_context TEXT NOT NULL DEFAULT '',
	original_response TEXT NOT NULL,
	corrected_response TEXT NOT NULL
)`, feedbackTable, idColumn)

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create feedback table: %w", err)
	}

	r.logger.Info("Feedback table ready", zap.String("driver", r.db.Driver))
	return nil
}

// Create appends a record. Field-sets are stored as RFC 8785 canonical JSON.
func (r *FeedbackRepository) Create(ctx context.Context, rec *models.FeedbackRecord) error {
	original, err := rec.OriginalResponse.Canonical()
	if err != nil {
		return fmt.Errorf("failed to encode original response: %w", err)
	}
	corrected, err := rec.CorrectedResponse.Canonical()
	if err != nil {
		return fmt.Errorf("failed to encode corrected response: %w", err)
	}

	query := squirrel.Insert(feedbackTable).
		Columns(feedbackColumns...).
		Values(rec.Timestamp.UTC().Format(time.RFC3339Nano), string(rec.FormType), rec.RAGContext, string(original), string(corrected)).
		PlaceholderFormat(r.placeholders())

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, sql, args...)
	return err
}

// ListAll returns every record in insertion order.
func (r *FeedbackRepository) ListAll(ctx context.Context) ([]*models.FeedbackRecord, error) {
	query := squirrel.Select(append([]string{"id"}, feedbackColumns...)...).
		From(feedbackTable).
		OrderBy("id ASC").
		PlaceholderFormat(r.placeholders())

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.FeedbackRecord
	for rows.Next() {
		var (
			rec                 models.FeedbackRecord
			ts, formType        string
			original, corrected string
		)
		if err := rows.Scan(&rec.ID, &ts, &formType, &rec.RAGContext, &original, &corrected); err != nil {
			return nil, err
		}

		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("feedback %d: bad timestamp %q: %w", rec.ID, ts, err)
		}
		rec.FormType = models.FormType(formType)
		if err := json.Unmarshal([]byte(original), &rec.OriginalResponse); err != nil {
			return nil, fmt.Errorf("feedback %d: bad original_response: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(corrected), &rec.CorrectedResponse); err != nil {
			return nil, fmt.Errorf("feedback %d: bad corrected_response: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

func (r *FeedbackRepository) Count(ctx context.Context) (int, error) {
	sql, args, err := squirrel.Select("COUNT(*)").From(feedbackTable).PlaceholderFormat(r.placeholders()).ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.db.QueryRowContext(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
