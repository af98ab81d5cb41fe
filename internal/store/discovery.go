package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DiscoveredPair is one persisted (family, src, tgt) entry, used as the
// cold-start fallback when a registry fetch fails and no in-memory TTL
// cache entry exists yet.
type DiscoveredPair struct {
	Family    string
	Src       string
	Tgt       string
	FetchedAt time.Time
}

// ReplacePairs atomically replaces every persisted pair for family with
// pairs, and records the refresh time in discovery_meta.
func (s *Store) ReplacePairs(family, source string, pairs [][2]string, fetchedAt time.Time) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return fmt.Errorf("store: begin replace pairs: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM discovered_pairs WHERE family = ?", family); err != nil {
		return fmt.Errorf("store: clear pairs for %s: %w", family, err)
	}

	stamp := fetchedAt.UTC().Format(time.RFC3339)
	for _, pair := range pairs {
		if _, err := tx.Exec(
			"INSERT INTO discovered_pairs (family, src_lang, tgt_lang, fetched_at) VALUES (?, ?, ?, ?)",
			family, pair[0], pair[1], stamp,
		); err != nil {
			return fmt.Errorf("store: insert pair %s->%s for %s: %w", pair[0], pair[1], family, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO discovery_meta (family, last_refresh, source) VALUES (?, ?, ?)
		 ON CONFLICT(family) DO UPDATE SET last_refresh = excluded.last_refresh, source = excluded.source`,
		family, stamp, source,
	); err != nil {
		return fmt.Errorf("store: update discovery_meta for %s: %w", family, err)
	}

	return tx.Commit()
}

// LoadPairs returns every persisted pair for family, for use as a
// stale-but-available fallback when a live registry fetch fails.
func (s *Store) LoadPairs(family string) ([]DiscoveredPair, error) {
	rows, err := s.reader.Query(
		"SELECT family, src_lang, tgt_lang, fetched_at FROM discovered_pairs WHERE family = ?", family,
	)
	if err != nil {
		return nil, fmt.Errorf("store: load pairs for %s: %w", family, err)
	}
	defer rows.Close()

	var out []DiscoveredPair
	for rows.Next() {
		var p DiscoveredPair
		var stamp string
		if err := rows.Scan(&p.Family, &p.Src, &p.Tgt, &stamp); err != nil {
			return nil, fmt.Errorf("store: scan pair row: %w", err)
		}
		p.FetchedAt, _ = time.Parse(time.RFC3339, stamp)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastRefresh returns when family's pairs were last successfully
// refreshed, or the zero time if never.
func (s *Store) LastRefresh(family string) (time.Time, error) {
	var stamp string
	err := s.reader.QueryRow("SELECT last_refresh FROM discovery_meta WHERE family = ?", family).Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: query last_refresh for %s: %w", family, err)
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse last_refresh for %s: %w", family, err)
	}
	return t, nil
}
