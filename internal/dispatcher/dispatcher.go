// Package dispatcher maps product URLs to the extraction strategy of the site that serves them.
package dispatcher

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/JakeFAU/comics-crawler/internal/comic"
	"github.com/JakeFAU/comics-crawler/internal/extract"
	"github.com/JakeFAU/comics-crawler/internal/textnorm"
)

// Production hostnames of the supported retailers.
const (
	HostComix     = "www.comix.com.br"
	HostComicBoom = "comicboom.com.br"
	HostPanini    = "panini.com.br"
)

// ErrNotFound is wrapped by DispatchError when no strategy matches a URL.
var ErrNotFound = errors.New("no strategy registered")

// ErrDuplicateRule reports a second registration for the same hostname.
var ErrDuplicateRule = errors.New("strategy already registered")

// DispatchError reports a URL that cannot be routed to a strategy.
type DispatchError struct {
	URL  string
	Host string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s (host %q): %v", e.URL, e.Host, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

type patternRule struct {
	pattern  *regexp.Regexp
	strategy extract.Strategy
}

// Dispatcher resolves strategies by exact hostname first, then by pattern in registration order.
type Dispatcher struct {
	mu       sync.RWMutex
	hosts    map[string]extract.Strategy
	patterns []patternRule
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{hosts: make(map[string]extract.Strategy)}
}

// Default wires the production retailers.
func Default(clock extract.Clock) *Dispatcher {
	d := New()
	// Hosts are distinct constants, so registration cannot collide.
	_ = d.Register(HostComix, extract.NewComix(clock))
	_ = d.Register(HostComicBoom, extract.NewComicBoom(clock))
	_ = d.Register(HostPanini, extract.NewPanini(clock))
	return d
}

// Register binds host to strategy. Registering a host twice is rejected.
func (d *Dispatcher) Register(host string, strategy extract.Strategy) error {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return fmt.Errorf("register strategy: host is required")
	}
	if strategy == nil {
		return fmt.Errorf("register strategy for %s: strategy is nil", host)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.hosts[host]; exists {
		return fmt.Errorf("register strategy for %s: %w", host, ErrDuplicateRule)
	}
	d.hosts[host] = strategy
	return nil
}

// RegisterPattern binds every hostname matching expr to strategy.
// Patterns are consulted only when no exact hostname matches.
func (d *Dispatcher) RegisterPattern(expr string, strategy extract.Strategy) error {
	if strategy == nil {
		return fmt.Errorf("register pattern %s: strategy is nil", expr)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("register pattern %s: %w", expr, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rule := range d.patterns {
		if rule.pattern.String() == re.String() {
			return fmt.Errorf("register pattern %s: %w", expr, ErrDuplicateRule)
		}
	}
	d.patterns = append(d.patterns, patternRule{pattern: re, strategy: strategy})
	return nil
}

// Resolve returns the strategy responsible for rawURL.
func (d *Dispatcher) Resolve(rawURL string) (extract.Strategy, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		if err == nil {
			err = errors.New("missing hostname")
		}
		return nil, &DispatchError{URL: rawURL, Err: fmt.Errorf("parse url: %w", err)}
	}
	host := strings.ToLower(u.Hostname())

	d.mu.RLock()
	defer d.mu.RUnlock()
	if strategy, ok := d.hosts[host]; ok {
		return strategy, nil
	}
	for _, rule := range d.patterns {
		if rule.pattern.MatchString(host) {
			return rule.strategy, nil
		}
	}
	return nil, &DispatchError{URL: rawURL, Host: host, Err: ErrNotFound}
}

// Scrape resolves the strategy for rawURL and extracts a record from html.
// The markup is cleaned of encoding noise before parsing.
func (d *Dispatcher) Scrape(rawURL, html string) (comic.Record, error) {
	strategy, err := d.Resolve(rawURL)
	if err != nil {
		return comic.Record{}, err
	}
	rec, err := strategy.Scrape(rawURL, textnorm.RemoveNonASCII(html))
	if err != nil {
		return comic.Record{}, fmt.Errorf("scrape with %s: %w", strategy.Site(), err)
	}
	return rec, nil
}

// SiteFor returns the site identifier for rawURL, or "unknown".
func (d *Dispatcher) SiteFor(rawURL string) string {
	strategy, err := d.Resolve(rawURL)
	if err != nil {
		return "unknown"
	}
	return strategy.Site()
}
