package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/crawlspace/internal/db"
	"github.com/sells-group/crawlspace/internal/model"
)

// NormalizeTags trims and NFC-normalizes tags, dropping blanks and repeats.
// Order of first occurrence is kept.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = norm.NFC.String(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// SaveTags replaces the tags of host. Unknown hosts are a no-op.
func (s *sqlStore) SaveTags(ctx context.Context, sc StorageContext, host string, tags []string) error {
	enc, err := encodeStrings(NormalizeTags(tags))
	if err != nil {
		return eris.Wrap(err, "encode tags")
	}
	q := s.d.stmt(`UPDATE `, db.Ident(sc.Collections.Hosts), ` SET tags = `)
	q.add(q.arg(enc), ` WHERE host = `, q.arg(host))
	n, err := s.c.exec(ctx, q.String(), q.args...)
	if err != nil {
		return eris.Wrapf(err, "%s: save tags %s", s.d.name, host)
	}
	if n == 0 {
		zap.L().Debug("tags for unknown host ignored", zap.String("host", host))
	}
	return nil
}

// ListTags returns the tags of host and whether the host exists.
func (s *sqlStore) ListTags(ctx context.Context, sc StorageContext, host string) ([]string, bool, error) {
	q := s.d.stmt(`SELECT tags FROM `, db.Ident(sc.Collections.Hosts), ` WHERE host = `)
	q.add(q.arg(host))
	var raw []byte
	err := s.c.queryRow(ctx, q.String(), q.args...).Scan(&raw)
	if isNoRows(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "%s: list tags %s", s.d.name, host)
	}
	tags, err := decodeStrings(raw)
	if err != nil {
		return nil, false, eris.Wrap(err, "decode tags")
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, true, nil
}

// SearchTags runs two independent host searches for term: hosts with a
// matching tag and hosts whose name matches. Hidden hosts are left out.
func (s *sqlStore) SearchTags(ctx context.Context, sc StorageContext, term string) (*TagSearch, error) {
	if err := checkRegex(term); err != nil {
		return nil, err
	}
	hosts := db.Ident(sc.Collections.Hosts)

	tq := s.d.stmt(`SELECT `, hostColumns, ` FROM `, hosts, ` AS h WHERE `)
	tq.add(tq.anyTagMatches("h.tags", term), ` AND `, visibleHosts(false), hostOrder)
	byTag, err := s.queryHosts(ctx, tq)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: search tags %q", s.d.name, term)
	}

	hq := s.d.stmt(`SELECT `, hostColumns, ` FROM `, hosts, ` AS h WHERE `)
	hq.add(hq.matches("h.host", term), ` AND `, visibleHosts(false), hostOrder)
	byName, err := s.queryHosts(ctx, hq)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: search hosts %q", s.d.name, term)
	}

	return &TagSearch{
		TagMatches:  append([]model.HostRecord{}, byTag...),
		HostMatches: append([]model.HostRecord{}, byName...),
	}, nil
}

// SaveDisplay sets the display flag of host and copies it to both display
// and interest of every URL of that host.
func (s *sqlStore) SaveDisplay(ctx context.Context, sc StorageContext, host string, displayable bool) error {
	hq := s.d.stmt(`UPDATE `, db.Ident(sc.Collections.Hosts), ` SET display = `)
	hq.add(hq.arg(displayable), ` WHERE host = `, hq.arg(host))
	if _, err := s.c.exec(ctx, hq.String(), hq.args...); err != nil {
		return eris.Wrapf(err, "%s: display host %s", s.d.name, host)
	}

	uq := s.d.stmt(`UPDATE `, db.Ident(sc.Collections.URLs), ` SET display = `)
	uq.add(uq.arg(displayable), `, interest = `, uq.arg(displayable), ` WHERE host = `, uq.arg(host))
	n, err := s.c.exec(ctx, uq.String(), uq.args...)
	if err != nil {
		return eris.Wrapf(err, "%s: display urls of %s", s.d.name, host)
	}
	zap.L().Debug("display updated",
		zap.String("host", host),
		zap.Bool("display", displayable),
		zap.Int64("urls", n),
	)
	return nil
}
