package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/publisher"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

// Sink receives extracted records. OnRecord may be called from several goroutines.
type Sink interface {
	OnRecord(ctx context.Context, rec comic.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec comic.Record) error

// OnRecord implements Sink.
func (f SinkFunc) OnRecord(ctx context.Context, rec comic.Record) error {
	return f(ctx, rec)
}

// RepositorySink upserts every record by URL.
type RepositorySink struct {
	repo store.ComicRepository
}

// NewRepositorySink wraps repo.
func NewRepositorySink(repo store.ComicRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

// OnRecord implements Sink.
func (s *RepositorySink) OnRecord(ctx context.Context, rec comic.Record) error {
	if err := store.UpsertByURL(ctx, s.repo, rec); err != nil {
		return fmt.Errorf("persist %s: %w", rec.URL, err)
	}
	return nil
}

// PublisherSink publishes every record as JSON with site and url attributes.
type PublisherSink struct {
	pub  publisher.Publisher
	site string
}

// NewPublisherSink wraps pub. site is attached to every message.
func NewPublisherSink(pub publisher.Publisher, site string) *PublisherSink {
	return &PublisherSink{pub: pub, site: site}
}

// OnRecord implements Sink.
func (s *PublisherSink) OnRecord(ctx context.Context, rec comic.Record) error {
	attrs := map[string]string{"site": s.site, "url": rec.URL}
	if rec.ISBN13 != "" {
		attrs["isbn13"] = rec.ISBN13
	}
	if _, err := s.pub.Publish(ctx, attrs, rec); err != nil {
		return fmt.Errorf("publish %s: %w", rec.URL, err)
	}
	return nil
}

// JSONLinesSink writes one JSON document per record.
type JSONLinesSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesSink writes to w.
func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	return &JSONLinesSink{enc: json.NewEncoder(w)}
}

// OnRecord implements Sink.
func (s *JSONLinesSink) OnRecord(_ context.Context, rec comic.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}

// LogSink logs a one-line summary per record.
func LogSink(logger *zap.Logger) Sink {
	return SinkFunc(func(_ context.Context, rec comic.Record) error {
		logger.Info("record extracted",
			zap.String("url", rec.URL),
			zap.String("title", rec.Title),
			zap.Float64("price", rec.Offer.Price),
			zap.Bool("available", rec.Offer.IsAvailable),
		)
		return nil
	})
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

// OnRecord implements Sink.
func (m MultiSink) OnRecord(ctx context.Context, rec comic.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.OnRecord(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
