package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/db"
	"github.com/sells-group/crawlspace/internal/domain"
	"github.com/sells-group/crawlspace/internal/model"
)

const (
	urlColumns     = `url, host, score, interest, display, screenshot_path, crawled_at, title, depth, referrer_url, meta`
	urlFullColumns = urlColumns + `, COALESCE(html, ''), COALESCE(html_rendered, '')`
	urlOrder       = ` ORDER BY score DESC NULLS LAST, id ASC`
)

// InsertURL stores rec unless its url already exists (the existing row wins)
// and bumps the owning host's num_urls. The host bump runs on every call,
// including duplicate skips, so num_urls can exceed the distinct URL count
// when URLs are resubmitted. It reports whether a new row was written.
func (s *sqlStore) InsertURL(ctx context.Context, sc StorageContext, rec model.URLRecord) (bool, error) {
	host, err := domain.Registrable(rec.URL)
	if err != nil {
		return false, err
	}
	rec.Host = host
	if rec.Title == "" && rec.HTML != "" {
		rec.Title = domain.Title(rec.HTML)
	}
	meta, err := encodeJSON(rec.Meta)
	if err != nil {
		return false, eris.Wrap(err, "encode url meta")
	}

	q := s.d.stmt(`INSERT INTO `, db.Ident(sc.Collections.URLs),
		` (url, host, score, interest, display, screenshot_path, html, html_rendered, crawled_at, title, depth, referrer_url, meta) VALUES (`)
	q.add(q.arg(rec.URL), ", ", q.arg(rec.Host), ", ", q.arg(rec.Score), ", ", q.arg(rec.Interest), ", ",
		q.arg(rec.Display), ", ", q.arg(rec.ScreenshotPath), ", ", q.arg(rec.HTML), ", ", q.arg(rec.HTMLRendered), ", ",
		q.arg(rec.CrawledAt), ", ", q.arg(rec.Title), ", ", q.arg(rec.Depth), ", ", q.arg(rec.ReferrerURL), ", ",
		q.arg(meta), `) ON CONFLICT (url) DO NOTHING`)
	n, err := s.c.exec(ctx, q.String(), q.args...)
	if err != nil {
		return false, eris.Wrapf(err, "%s: insert url %s", s.d.name, rec.URL)
	}
	if n == 0 {
		zap.L().Debug("url already stored, skipping", zap.String("url", rec.URL), zap.String("workspace", sc.Workspace))
	}

	if err := s.bumpHost(ctx, sc, host); err != nil {
		return n > 0, err
	}
	return n > 0, nil
}

// bumpHost creates the host row with num_urls = 1 or increments it, in one
// statement so concurrent inserts for a new host never lose an update.
func (s *sqlStore) bumpHost(ctx context.Context, sc StorageContext, host string) error {
	q := s.d.stmt(`INSERT INTO `, db.Ident(sc.Collections.Hosts), ` AS h (host, num_urls) VALUES (`)
	q.add(q.arg(host), `, 1) ON CONFLICT (host) DO UPDATE SET num_urls = h.num_urls + 1`)
	if _, err := s.c.exec(ctx, q.String(), q.args...); err != nil {
		return eris.Wrapf(err, "%s: bump host %s", s.d.name, host)
	}
	return nil
}

func (s *sqlStore) GetURL(ctx context.Context, sc StorageContext, url string) (*model.URLRecord, error) {
	q := s.d.stmt(`SELECT `, urlFullColumns, ` FROM `, db.Ident(sc.Collections.URLs), ` WHERE url = `)
	q.add(q.arg(url))
	rec, err := scanURL(s.c.queryRow(ctx, q.String(), q.args...), true)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get url %s", s.d.name, url)
	}
	return rec, nil
}

// ListURLs returns URLs by descending score. With a host only that host's
// URLs are returned, hidden or not; without one, hidden URLs are excluded.
// A limit <= 0 returns every match.
func (s *sqlStore) ListURLs(ctx context.Context, sc StorageContext, host string, limit int) ([]model.URLRecord, error) {
	q := s.d.stmt(`SELECT `, urlColumns, ` FROM `, db.Ident(sc.Collections.URLs))
	if host != "" {
		q.add(` WHERE host = `, q.arg(host))
	} else {
		q.add(` WHERE COALESCE(display, TRUE)`)
	}
	q.add(urlOrder)
	if limit > 0 {
		q.add(` LIMIT `, q.arg(limit))
	}
	return s.queryURLs(ctx, q, false)
}

// HighestScoringURLWithScreenshot returns the best-scored URL of host that
// has a screenshot, treating a missing score as 0. Ties resolve arbitrarily.
func (s *sqlStore) HighestScoringURLWithScreenshot(ctx context.Context, sc StorageContext, host string) (*model.URLRecord, error) {
	q := s.d.stmt(`SELECT `, urlColumns, ` FROM `, db.Ident(sc.Collections.URLs), ` WHERE host = `)
	q.add(q.arg(host), ` AND screenshot_path IS NOT NULL ORDER BY COALESCE(score, 0) DESC LIMIT 1`)
	rec, err := scanURL(s.c.queryRow(ctx, q.String(), q.args...), false)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: screenshot url for %s", s.d.name, host)
	}
	return rec, nil
}

// HostScore returns the score of host's top-ranked URL, 0 when the host has
// no URLs or its top URL is unscored.
func (s *sqlStore) HostScore(ctx context.Context, sc StorageContext, host string) (float64, error) {
	q := s.d.stmt(`SELECT score FROM `, db.Ident(sc.Collections.URLs), ` WHERE host = `)
	q.add(q.arg(host), urlOrder, ` LIMIT 1`)
	var score *float64
	err := s.c.queryRow(ctx, q.String(), q.args...).Scan(&score)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "%s: host score %s", s.d.name, host)
	}
	if score == nil {
		return 0, nil
	}
	return *score, nil
}

func (s *sqlStore) SetInterest(ctx context.Context, sc StorageContext, url string, interest *bool) error {
	return s.setURLField(ctx, sc, url, "interest", interest)
}

func (s *sqlStore) SetScore(ctx context.Context, sc StorageContext, url string, score float64) error {
	return s.setURLField(ctx, sc, url, "score", score)
}

func (s *sqlStore) SetScreenshotPath(ctx context.Context, sc StorageContext, url, path string) error {
	return s.setURLField(ctx, sc, url, "screenshot_path", path)
}

func (s *sqlStore) SetHTMLRendered(ctx context.Context, sc StorageContext, url, html string) error {
	return s.setURLField(ctx, sc, url, "html_rendered", html)
}

// setURLField updates one column of one URL. Unknown URLs are a no-op.
func (s *sqlStore) setURLField(ctx context.Context, sc StorageContext, url, column string, value any) error {
	q := s.d.stmt(`UPDATE `, db.Ident(sc.Collections.URLs), ` SET `, column, ` = `)
	q.add(q.arg(value), ` WHERE url = `, q.arg(url))
	if _, err := s.c.exec(ctx, q.String(), q.args...); err != nil {
		return eris.Wrapf(err, "%s: set %s on %s", s.d.name, column, url)
	}
	return nil
}

// DeleteURLsMatching deletes every URL whose url contains substring (or,
// with negate, does not) together with the host row of each such URL. A
// host with both matching and non-matching URLs loses its host row while
// its non-matching URLs remain.
func (s *sqlStore) DeleteURLsMatching(ctx context.Context, sc StorageContext, substring string, negate bool) (DeleteResult, error) {
	urls, hosts := db.Ident(sc.Collections.URLs), db.Ident(sc.Collections.Hosts)

	hq := s.d.stmt(`DELETE FROM `, hosts, ` WHERE host IN (SELECT host FROM `, urls, ` WHERE `)
	hq.add(hq.contains("url", substring, negate), `)`)
	var res DeleteResult
	var err error
	if res.Hosts, err = s.c.exec(ctx, hq.String(), hq.args...); err != nil {
		return res, eris.Wrapf(err, "%s: delete hosts of urls matching %q", s.d.name, substring)
	}

	uq := s.d.stmt(`DELETE FROM `, urls, ` WHERE `)
	uq.add(uq.contains("url", substring, negate))
	if res.URLs, err = s.c.exec(ctx, uq.String(), uq.args...); err != nil {
		return res, eris.Wrapf(err, "%s: delete urls matching %q", s.d.name, substring)
	}

	zap.L().Info("deleted urls by match",
		zap.String("workspace", sc.Workspace),
		zap.String("match", substring),
		zap.Bool("negate", negate),
		zap.Int64("urls", res.URLs),
		zap.Int64("hosts", res.Hosts),
	)
	return res, nil
}

// ListURLsWithInterest returns every URL labelled with interest, page
// bodies included, for training the ranker. Unlabelled URLs are skipped.
func (s *sqlStore) ListURLsWithInterest(ctx context.Context, sc StorageContext, interest bool) ([]model.URLRecord, error) {
	q := s.d.stmt(`SELECT `, urlFullColumns, ` FROM `, db.Ident(sc.Collections.URLs), ` WHERE interest = `)
	q.add(q.arg(interest), urlOrder)
	return s.queryURLs(ctx, q, true)
}

func (s *sqlStore) queryURLs(ctx context.Context, q *stmt, full bool) ([]model.URLRecord, error) {
	rs, err := s.c.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list urls", s.d.name)
	}
	defer rs.Close()

	var out []model.URLRecord
	for rs.Next() {
		rec, err := scanURL(rs, full)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan url", s.d.name)
		}
		out = append(out, *rec)
	}
	return out, eris.Wrapf(rs.Err(), "%s: list urls iterate", s.d.name)
}

func scanURL(r row, full bool) (*model.URLRecord, error) {
	var (
		rec     model.URLRecord
		crawled *time.Time
		meta    []byte
	)
	dest := []any{&rec.URL, &rec.Host, &rec.Score, &rec.Interest, &rec.Display, &rec.ScreenshotPath,
		&crawled, &rec.Title, &rec.Depth, &rec.ReferrerURL, &meta}
	if full {
		dest = append(dest, &rec.HTML, &rec.HTMLRendered)
	}
	if err := r.Scan(dest...); err != nil {
		return nil, err
	}
	rec.CrawledAt = crawled
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &rec.Meta); err != nil {
			return nil, eris.Wrap(err, "decode url meta")
		}
	}
	return &rec, nil
}

// encodeJSON renders v for a JSON column, nil for empty maps.
func encodeJSON(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
