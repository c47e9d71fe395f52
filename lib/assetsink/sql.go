package assetsink

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"recorder-scraper/lib/scrapers/recorder"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed schema.sql
var Schema string

// SQLSink upserts records and pages, so a job can be re-run over the same
// database without duplicating rows.
type SQLSink struct {
	db *sql.DB
}

// NewSQLSink creates the tables when they are missing.
func NewSQLSink(ctx context.Context, db *sql.DB) (*SQLSink, error) {
	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLSink{db: db}, nil
}

func (s *SQLSink) PutRecord(ctx context.Context, record recorder.DocumentRecord) error {
	ctx, span := tracer.Start(ctx, "sql:PutRecord")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", record.DocumentID))

	_, err := s.db.ExecContext(
		ctx,
		`insert into document (
			document_id, item, recorded_text, recorded_at,
			document_type, document_name, name_type, viewer_link
		) values (?, ?, ?, ?, ?, ?, ?, ?)
		on conflict (document_id, document_name, name_type) do update set
			item = excluded.item,
			recorded_text = excluded.recorded_text,
			recorded_at = excluded.recorded_at,
			document_type = excluded.document_type,
			viewer_link = excluded.viewer_link`,
		record.DocumentID, record.Item, record.RecordedText, record.Recorded.Unix(),
		record.DocumentType, record.DocumentName, record.NameType, record.ViewerLink,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert document")
		return err
	}
	return nil
}

func (s *SQLSink) PutPage(ctx context.Context, page recorder.PageAsset) error {
	ctx, span := tracer.Start(ctx, "sql:PutPage")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", page.DocumentID),
		attribute.Int("page", page.Page),
	)

	_, err := s.db.ExecContext(
		ctx,
		`insert into page (document_id, page, content_type, content) values (?, ?, ?, ?)
		on conflict (document_id, page) do update set
			content_type = excluded.content_type,
			content = excluded.content`,
		page.DocumentID, page.Page, page.ContentType, page.Content,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert page")
		return err
	}
	return nil
}

// Records lists the stored records ordered by recording date and document id.
func (s *SQLSink) Records(ctx context.Context) ([]recorder.DocumentRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select document_id, item, recorded_text, recorded_at,
			document_type, document_name, name_type, viewer_link
		from document
		order by recorded_at, document_id, document_name, name_type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recorder.DocumentRecord
	for rows.Next() {
		var r recorder.DocumentRecord
		var recordedAt int64
		err := rows.Scan(
			&r.DocumentID, &r.Item, &r.RecordedText, &recordedAt,
			&r.DocumentType, &r.DocumentName, &r.NameType, &r.ViewerLink,
		)
		if err != nil {
			return nil, err
		}
		r.Recorded = time.Unix(recordedAt, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Pages returns the stored pages of a document in page order.
func (s *SQLSink) Pages(ctx context.Context, documentID string) ([]recorder.PageAsset, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select page, content_type, content from page where document_id = ? order by page`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []recorder.PageAsset
	for rows.Next() {
		p := recorder.PageAsset{DocumentID: documentID}
		err := rows.Scan(&p.Page, &p.ContentType, &p.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
