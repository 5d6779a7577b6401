// Package ingest bulk-loads known URLs into the store.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crawlspace/internal/domain"
	"github.com/sells-group/crawlspace/internal/model"
	"github.com/sells-group/crawlspace/internal/store"
)

// maxLineBytes bounds one input line. Longer lines are counted invalid.
const maxLineBytes = 64 * 1024

// Inserter stores one URL record.
type Inserter interface {
	InsertURL(ctx context.Context, sc store.StorageContext, rec model.URLRecord) (bool, error)
}

// Result counts the outcome of one ingestion.
type Result struct {
	Lines      int `json:"lines"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// KnownURLs reads one URL per line from r and inserts each valid one into
// sc. Blank lines and lines starting with '#' are ignored. Invalid URLs are
// logged and skipped; storage errors abort the run.
func KnownURLs(ctx context.Context, ins Inserter, sc store.StorageContext, r io.Reader) (Result, error) {
	var res Result
	br := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw, tooLong, readErr := readLine(br)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return res, eris.Wrap(readErr, "ingest: read input")
		}
		if errors.Is(readErr, io.EOF) && raw == "" && !tooLong {
			break
		}
		res.Lines++

		if err := res.ingestLine(ctx, ins, sc, raw, tooLong); err != nil {
			return res, err
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	zap.L().Info("known urls ingested",
		zap.String("namespace", string(sc.Namespace)),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("invalid", res.Invalid),
	)
	return res, nil
}

func (res *Result) ingestLine(ctx context.Context, ins Inserter, sc store.StorageContext, raw string, tooLong bool) error {
	if tooLong {
		res.Invalid++
		zap.L().Warn("skipping overlong known url line", zap.Int("line", res.Lines), zap.Int("max_bytes", maxLineBytes))
		return nil
	}
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	if err := domain.Validate(line); err != nil {
		res.Invalid++
		zap.L().Warn("skipping invalid known url", zap.Int("line", res.Lines), zap.Error(err))
		return nil
	}

	inserted, err := ins.InsertURL(ctx, sc, model.URLRecord{URL: line})
	if err != nil {
		return eris.Wrapf(err, "ingest: line %d", res.Lines)
	}
	if inserted {
		res.Inserted++
	} else {
		res.Duplicates++
		zap.L().Info("existing url skipped", zap.String("url", line))
	}
	return nil
}

// readLine returns the next line of br without its newline. A line longer
// than maxLineBytes is drained and reported as tooLong with an empty body,
// so memory stays bounded. err is io.EOF on the final line.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, err := br.ReadSlice('\n')
		n := len(buf) + len(chunk)
		if bytes.HasSuffix(chunk, []byte{'\n'}) {
			n--
		}
		if !tooLong && n > maxLineBytes {
			tooLong, buf = true, nil
		}
		if !tooLong {
			buf = append(buf, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return "", true, err
		}
		return strings.TrimSuffix(string(buf), "\n"), false, err
	}
}
