package roster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"marble-royale/internal/game"
)

// DefaultConcurrency bounds parallel fetches when Load is given zero.
const DefaultConcurrency = 4

// Load fetches and normalizes the fighters for ids concurrently. A fighter
// whose metrics can't be fetched is excluded and logged; if fewer than min
// remain, Load fails with ErrTooFewFighters. The result keeps the order
// of ids. Only context cancellation aborts the whole load.
func Load(ctx context.Context, src Source, ids []string, min, concurrency int) ([]game.Fighter, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*game.Fighter, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range ids {
		g.Go(func() error {
			m, err := src.Fetch(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("⚠️ Excluding fighter %s: %v", id, err)
				return nil
			}
			f := Normalize(m)
			if err := f.Validate(); err != nil {
				log.Printf("⚠️ Excluding fighter %s: %v", id, err)
				return nil
			}
			results[i] = &f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	fighters := make([]game.Fighter, 0, len(ids))
	for _, f := range results {
		if f != nil {
			fighters = append(fighters, *f)
		}
	}
	if len(fighters) < min {
		return fighters, fmt.Errorf("%w: loaded %d of %d, need %d", ErrTooFewFighters, len(fighters), len(ids), min)
	}

	log.Printf("📋 Loaded %d/%d fighters", len(fighters), len(ids))
	return fighters, nil
}

// IsAbort reports whether err should send the session back to selection
// with a user-facing message rather than being treated as internal.
func IsAbort(err error) bool {
	return errors.Is(err, ErrTooFewFighters) || errors.Is(err, ErrUnknownFighter)
}

// ParseShareList decodes a shareable battle configuration: fighter ids
// separated by commas, dashes or whitespace. Ids are trimmed, uppercased
// and deduplicated, keeping first-seen order.
func ParseShareList(param string) []string {
	fields := strings.FieldsFunc(param, func(r rune) bool {
		return r == ',' || r == '-' || r == ' ' || r == '\t' || r == '\n'
	})

	seen := make(map[string]bool, len(fields))
	ids := make([]string, 0, len(fields))
	for _, f := range fields {
		id := strings.ToUpper(strings.TrimSpace(f))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ShareList encodes ids in the form ParseShareList reads.
func ShareList(ids []string) string {
	return strings.Join(ids, ",")
}
