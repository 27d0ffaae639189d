package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownFighter is returned when a source has no metrics for an id.
	ErrUnknownFighter = errors.New("unknown fighter")
	// ErrTooFewFighters is returned when fewer than the minimum number of
	// fighters could be loaded.
	ErrTooFewFighters = errors.New("too few fighters")
)

// Source fetches the metrics of one fighter.
type Source interface {
	Fetch(ctx context.Context, id string) (Metrics, error)
}

// Lister is implemented by sources that can enumerate their fighters.
type Lister interface {
	List(ctx context.Context) ([]Metrics, error)
}

// =============================================================================
// YAML FILE SOURCE
// =============================================================================

// rosterFile is the on-disk layout of a roster.
type rosterFile struct {
	Fighters []Metrics `yaml:"fighters"`
}

// FileSource serves metrics from a YAML roster loaded once at construction.
type FileSource struct {
	byID  map[string]Metrics
	order []string
}

// NewFileSource reads and parses a YAML roster file.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster parses YAML roster bytes. Ids are case-insensitive and must
// be unique.
func ParseRoster(data []byte) (*FileSource, error) {
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	fs := &FileSource{byID: make(map[string]Metrics, len(rf.Fighters))}
	for _, m := range rf.Fighters {
		m.ID = strings.ToUpper(strings.TrimSpace(m.ID))
		if m.ID == "" {
			return nil, errors.New("parse roster: fighter without id")
		}
		if _, dup := fs.byID[m.ID]; dup {
			return nil, fmt.Errorf("parse roster: duplicate id %s", m.ID)
		}
		if m.Kind == "" {
			m.Kind = KindMarket
		}
		fs.byID[m.ID] = m
		fs.order = append(fs.order, m.ID)
	}
	return fs, nil
}

// Fetch returns the metrics for id.
func (fs *FileSource) Fetch(ctx context.Context, id string) (Metrics, error) {
	if err := ctx.Err(); err != nil {
		return Metrics{}, err
	}
	m, ok := fs.byID[strings.ToUpper(id)]
	if !ok {
		return Metrics{}, fmt.Errorf("%w: %s", ErrUnknownFighter, id)
	}
	return m, nil
}

// List returns every fighter in file order.
func (fs *FileSource) List(ctx context.Context) ([]Metrics, error) {
	out := make([]Metrics, 0, len(fs.order))
	for _, id := range fs.order {
		out = append(out, fs.byID[id])
	}
	return out, nil
}

// =============================================================================
// HTTP SOURCE
// =============================================================================

// HTTPSource fetches metrics as JSON from an endpoint. URLTemplate contains
// one %s that is replaced by the escaped id.
type HTTPSource struct {
	URLTemplate string
	client      *http.Client
}

// NewHTTPSource creates an HTTP metrics source.
func NewHTTPSource(urlTemplate string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		URLTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
	}
}

// Fetch requests the metrics for id.
func (hs *HTTPSource) Fetch(ctx context.Context, id string) (Metrics, error) {
	u := fmt.Sprintf(hs.URLTemplate, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Metrics{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hs.client.Do(req)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetch %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Metrics{}, fmt.Errorf("%w: %s", ErrUnknownFighter, id)
	case resp.StatusCode != http.StatusOK:
		return Metrics{}, fmt.Errorf("fetch %s: status %d", id, resp.StatusCode)
	}

	var m Metrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Metrics{}, fmt.Errorf("decode %s: %w", id, err)
	}
	if m.ID == "" {
		m.ID = strings.ToUpper(id)
	}
	return m, nil
}

// =============================================================================
// FALLBACK
// =============================================================================

// Chain tries each source in order and returns the first success. An
// unknown id in one source falls through to the next.
type Chain []Source

// Fetch implements Source.
func (c Chain) Fetch(ctx context.Context, id string) (Metrics, error) {
	err := fmt.Errorf("%w: %s", ErrUnknownFighter, id)
	for _, src := range c {
		m, ferr := src.Fetch(ctx, id)
		if ferr == nil {
			return m, nil
		}
		if ctx.Err() != nil {
			return Metrics{}, ctx.Err()
		}
		err = ferr
	}
	return Metrics{}, err
}

// List merges the listings of every source that can enumerate, first
// source wins on duplicate ids. The result is sorted by id.
func (c Chain) List(ctx context.Context) ([]Metrics, error) {
	seen := make(map[string]bool)
	var out []Metrics
	for _, src := range c {
		l, ok := src.(Lister)
		if !ok {
			continue
		}
		ms, err := l.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
