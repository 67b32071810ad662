package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/dispatcher"
	"github.com/JakeFAU/comics-crawler/internal/extract"
	"github.com/JakeFAU/comics-crawler/internal/fetcher"
	"github.com/JakeFAU/comics-crawler/internal/store"
)

const (
	defaultComicLimit = 50
	maxComicLimit     = 500
)

// listComics handles GET /v1/comics?url=&isbn13=&limit=.
func (s *Server) listComics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Comics == nil {
		writeError(w, http.StatusServiceUnavailable, "comic repository unavailable")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultComicLimit, maxComicLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := store.ComicFilter{
		URL:    strings.TrimSpace(r.URL.Query().Get("url")),
		ISBN13: strings.TrimSpace(r.URL.Query().Get("isbn13")),
		Limit:  limit,
	}
	records, err := s.deps.Comics.Select(r.Context(), filter)
	if err != nil {
		s.logger.Error("list comics failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list comics")
		return
	}
	if records == nil {
		records = []comic.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comics": records})
}

// getComic handles GET /v1/comics/{isbn13}.
func (s *Server) getComic(w http.ResponseWriter, r *http.Request) {
	if s.deps.Comics == nil {
		writeError(w, http.StatusServiceUnavailable, "comic repository unavailable")
		return
	}
	isbn13 := chi.URLParam(r, "isbn13")
	records, err := s.deps.Comics.Select(r.Context(), store.ComicFilter{ISBN13: isbn13, Limit: 1})
	if err != nil {
		s.logger.Error("get comic failed", zap.String("isbn13", isbn13), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load comic")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "comic not found")
		return
	}
	writeJSON(w, http.StatusOK, records[0])
}

// upsertComic handles PUT /v1/comics/upsert?url=. The page is scraped and stored by URL.
func (s *Server) upsertComic(w http.ResponseWriter, r *http.Request) {
	if s.deps.Comics == nil || s.deps.Scraper == nil {
		writeError(w, http.StatusServiceUnavailable, "scraper unavailable")
		return
	}
	pageURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if err := validatePageURL(pageURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.deps.Scraper.ScrapeURL(r.Context(), pageURL, s.deps.Headers)
	if err != nil {
		status, msg := scrapeErrorStatus(err)
		s.logger.Warn("scrape failed", zap.String("url", pageURL), zap.Int("status", status), zap.Error(err))
		writeError(w, status, msg)
		return
	}
	if err := store.UpsertByURL(r.Context(), s.deps.Comics, rec); err != nil {
		s.logger.Error("upsert comic failed", zap.String("url", pageURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store comic")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func validatePageURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be an absolute http(s) URL", raw)
	}
	return nil
}

func scrapeErrorStatus(err error) (int, string) {
	var (
		dispatchErr  *dispatcher.DispatchError
		transportErr *fetcher.TransportError
		extractErr   *extract.ExtractionError
	)
	switch {
	case errors.As(err, &dispatchErr):
		return http.StatusBadRequest, "unsupported site"
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, "failed to fetch page"
	case errors.As(err, &extractErr):
		return http.StatusUnprocessableEntity, "page is not a product page"
	default:
		return http.StatusInternalServerError, "scrape failed"
	}
}

func parseLimit(raw string, def, maxLimit int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
