package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crawlspace/internal/db"
	"github.com/sells-group/crawlspace/internal/model"
)

var featureColumns = []string{"fingerprint", "score", "meta", "data", "updated_at"}

func featureTable(sc StorageContext) (string, error) {
	if sc.Collections.Features == "" {
		return "", &ValidationError{Field: "namespace", Reason: string(sc.Namespace) + " has no classifier features"}
	}
	return sc.Collections.Features, nil
}

// featureRows encodes features for insertion, one row per fingerprint. A
// fingerprint repeated in the batch keeps its last occurrence.
func featureRows(features []model.ClassifierFeature) ([][]any, error) {
	now := time.Now().UTC()
	index := make(map[string]int, len(features))
	var out [][]any
	for _, f := range features {
		if f.Fingerprint == "" {
			return nil, &ValidationError{Field: "fingerprint", Reason: "empty"}
		}
		meta, err := encodeJSON(f.Meta)
		if err != nil {
			return nil, eris.Wrapf(err, "encode meta of %s", f.Fingerprint)
		}
		data, err := encodeJSON(f.Data)
		if err != nil {
			return nil, eris.Wrapf(err, "encode data of %s", f.Fingerprint)
		}
		updated := f.UpdatedAt
		if updated.IsZero() {
			updated = now
		}
		r := []any{f.Fingerprint, f.Score, meta, data, updated}
		if i, ok := index[f.Fingerprint]; ok {
			out[i] = r
			continue
		}
		index[f.Fingerprint] = len(out)
		out = append(out, r)
	}
	return out, nil
}

// SaveFeatures upserts features by fingerprint, one statement per row.
func (s *sqlStore) SaveFeatures(ctx context.Context, sc StorageContext, features []model.ClassifierFeature) (int64, error) {
	table, err := featureTable(sc)
	if err != nil {
		return 0, err
	}
	rows, err := featureRows(features)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, r := range rows {
		q := s.d.stmt(`INSERT INTO `, db.Ident(table), ` (`, db.JoinIdents(featureColumns), `) VALUES (`)
		for i, v := range r {
			if i > 0 {
				q.add(", ")
			}
			q.add(q.arg(v))
		}
		q.add(`) ON CONFLICT (fingerprint) DO UPDATE SET score = excluded.score, meta = excluded.meta,`,
			` data = excluded.data, updated_at = excluded.updated_at`)
		n, err := s.c.exec(ctx, q.String(), q.args...)
		if err != nil {
			return total, eris.Wrapf(err, "%s: save feature %v", s.d.name, r[0])
		}
		total += n
	}
	return total, nil
}

// ListFeatures returns features by descending score. A limit <= 0 returns
// every row.
func (s *sqlStore) ListFeatures(ctx context.Context, sc StorageContext, limit int) ([]model.ClassifierFeature, error) {
	table, err := featureTable(sc)
	if err != nil {
		return nil, err
	}
	q := s.d.stmt(`SELECT fingerprint, score, meta, data, updated_at FROM `, db.Ident(table),
		` ORDER BY score DESC NULLS LAST, id ASC`)
	if limit > 0 {
		q.add(` LIMIT `, q.arg(limit))
	}
	rs, err := s.c.query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list features", s.d.name)
	}
	defer rs.Close()

	var out []model.ClassifierFeature
	for rs.Next() {
		var (
			f          model.ClassifierFeature
			meta, data []byte
		)
		if err := rs.Scan(&f.Fingerprint, &f.Score, &meta, &data, &f.UpdatedAt); err != nil {
			return nil, eris.Wrapf(err, "%s: scan feature", s.d.name)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &f.Meta); err != nil {
				return nil, eris.Wrap(err, "decode feature meta")
			}
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &f.Data); err != nil {
				return nil, eris.Wrap(err, "decode feature data")
			}
		}
		out = append(out, f)
	}
	return out, eris.Wrapf(rs.Err(), "%s: list features iterate", s.d.name)
}
