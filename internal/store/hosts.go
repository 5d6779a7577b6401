package store

import (
	"context"
	"encoding/json"
	"math"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/collection"
	"github.com/sells-group/crawlspace/internal/db"
	"github.com/sells-group/crawlspace/internal/model"
)

const (
	hostColumns = `h.id, h.host, h.num_urls, h.host_score, h.tags, h.display`
	hostOrder   = ` ORDER BY h.host_score DESC NULLS LAST, h.id ASC`

	defaultPageSize = 10
)

// hostFilterFields are the host columns a HostQuery regex may target.
var hostFilterFields = map[string]bool{"host": true}

func (s *sqlStore) GetHost(ctx context.Context, sc StorageContext, host string) (*model.HostRecord, error) {
	q := s.d.stmt(`SELECT `, hostColumns, ` FROM `, db.Ident(sc.Collections.Hosts), ` AS h WHERE h.host = `)
	q.add(q.arg(host))
	rec, err := scanHost(s.c.queryRow(ctx, q.String(), q.args...))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: get host %s", s.d.name, host)
	}
	return rec, nil
}

// ListHosts pages hosts by (host_score desc, id asc). A regex matches the
// chosen field or any tag. Hidden hosts are left out unless ShowAll is set.
func (s *sqlStore) ListHosts(ctx context.Context, sc StorageContext, hq HostQuery) ([]model.HostRecord, error) {
	page, size := hq.Page, hq.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if page-1 > math.MaxInt/size {
		return nil, &ValidationError{Field: "page", Reason: "out of range"}
	}

	q := s.d.stmt(`SELECT `, hostColumns, ` FROM `, db.Ident(sc.Collections.Hosts), ` AS h WHERE `)
	if hq.Regex != "" {
		field := hq.Field
		if field == "" {
			field = "host"
		}
		if !hostFilterFields[field] {
			return nil, &ValidationError{Field: "filter field", Reason: "unsupported field " + field}
		}
		if err := checkRegex(hq.Regex); err != nil {
			return nil, err
		}
		q.add(`(`, q.matches("h."+field, hq.Regex), ` OR `, q.anyTagMatches("h.tags", hq.Regex), `) AND `)
	}
	q.add(visibleHosts(hq.ShowAll), hostOrder, ` LIMIT `, q.arg(size), ` OFFSET `, q.arg((page-1)*size))

	return s.queryHosts(ctx, q)
}

// visibleHosts renders the display condition of a host listing.
func visibleHosts(showAll bool) string {
	if showAll {
		return `TRUE`
	}
	return `COALESCE(h.display, TRUE)`
}

func (s *sqlStore) SetHostScore(ctx context.Context, sc StorageContext, host string, score float64) error {
	q := s.d.stmt(`UPDATE `, db.Ident(sc.Collections.Hosts), ` SET host_score = `)
	q.add(q.arg(score), ` WHERE host = `, q.arg(host))
	if _, err := s.c.exec(ctx, q.String(), q.args...); err != nil {
		return eris.Wrapf(err, "%s: set host score %s", s.d.name, host)
	}
	return nil
}

// DeleteHostsMatching deletes every host whose name contains substring (or,
// with negate, does not) together with all of its URLs.
func (s *sqlStore) DeleteHostsMatching(ctx context.Context, sc StorageContext, substring string, negate bool) (DeleteResult, error) {
	var res DeleteResult
	var err error

	uq := s.d.stmt(`DELETE FROM `, db.Ident(sc.Collections.URLs), ` WHERE `)
	uq.add(uq.contains("host", substring, negate))
	if res.URLs, err = s.c.exec(ctx, uq.String(), uq.args...); err != nil {
		return res, eris.Wrapf(err, "%s: delete urls of hosts matching %q", s.d.name, substring)
	}

	hq := s.d.stmt(`DELETE FROM `, db.Ident(sc.Collections.Hosts), ` WHERE `)
	hq.add(hq.contains("host", substring, negate))
	if res.Hosts, err = s.c.exec(ctx, hq.String(), hq.args...); err != nil {
		return res, eris.Wrapf(err, "%s: delete hosts matching %q", s.d.name, substring)
	}

	zap.L().Info("deleted hosts by match",
		zap.String("workspace", sc.Workspace),
		zap.String("match", substring),
		zap.Bool("negate", negate),
		zap.Int64("urls", res.URLs),
		zap.Int64("hosts", res.Hosts),
	)
	return res, nil
}

// DeleteAllMatching runs the URL match delete and then the host match
// delete for the same substring, and sums what both removed.
func (s *sqlStore) DeleteAllMatching(ctx context.Context, sc StorageContext, substring string, negate bool) (DeleteResult, error) {
	byURL, err := s.DeleteURLsMatching(ctx, sc, substring, negate)
	if err != nil {
		return byURL, err
	}
	byHost, err := s.DeleteHostsMatching(ctx, sc, substring, negate)
	return DeleteResult{URLs: byURL.URLs + byHost.URLs, Hosts: byURL.Hosts + byHost.Hosts}, err
}

// IsKnownHost reports whether host is in the known-data host table,
// whatever namespace the caller is working in.
func (s *sqlStore) IsKnownHost(ctx context.Context, host string) (bool, error) {
	known, err := collection.Fixed(collection.KnownData)
	if err != nil {
		return false, err
	}
	q := s.d.stmt(`SELECT 1 FROM `, db.Ident(known.Hosts), ` WHERE host = `)
	q.add(q.arg(host))
	var one int
	err = s.c.queryRow(ctx, q.String(), q.args...).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "%s: known host %s", s.d.name, host)
	}
	return true, nil
}

func (s *sqlStore) queryHosts(ctx context.Context, q *stmt) ([]model.HostRecord, error) {
	rs, err := s.c.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list hosts", s.d.name)
	}
	defer rs.Close()

	var out []model.HostRecord
	for rs.Next() {
		rec, err := scanHost(rs)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan host", s.d.name)
		}
		out = append(out, *rec)
	}
	return out, eris.Wrapf(rs.Err(), "%s: list hosts iterate", s.d.name)
}

func scanHost(r row) (*model.HostRecord, error) {
	var (
		rec  model.HostRecord
		tags []byte
	)
	if err := r.Scan(&rec.ID, &rec.Host, &rec.NumURLs, &rec.HostScore, &tags, &rec.Display); err != nil {
		return nil, err
	}
	rec.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &rec.Tags); err != nil {
			return nil, eris.Wrap(err, "decode host tags")
		}
	}
	return &rec, nil
}

// checkRegex rejects patterns that cannot be compiled before they reach the
// database.
func checkRegex(re string) error {
	if _, err := regexp.Compile(re); err != nil {
		return &ValidationError{Field: "regex", Reason: err.Error()}
	}
	return nil
}
