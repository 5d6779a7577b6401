package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Preferences live on the workspace row named by sc.WorkspaceID. Reads
// without a workspace yield zero values; writes fail with
// ErrNoWorkspaceSelected.

func (s *sqlStore) ListKeywords(ctx context.Context, sc StorageContext) ([]string, error) {
	return s.readStrings(ctx, sc, "keyword")
}

func (s *sqlStore) SaveKeywords(ctx context.Context, sc StorageContext, keywords []string) error {
	return s.writeStrings(ctx, sc, "keyword", keywords)
}

func (s *sqlStore) ListSearchTerms(ctx context.Context, sc StorageContext) ([]string, error) {
	return s.readStrings(ctx, sc, "searchterm")
}

func (s *sqlStore) SaveSearchTerms(ctx context.Context, sc StorageContext, terms []string) error {
	return s.writeStrings(ctx, sc, "searchterm", terms)
}

func (s *sqlStore) BlurLevel(ctx context.Context, sc StorageContext) (int, error) {
	if !sc.HasWorkspace() {
		return 0, nil
	}
	q := s.d.stmt(`SELECT blur_level FROM workspaces WHERE id = `)
	q.add(q.arg(sc.WorkspaceID))
	var level int
	err := s.c.queryRow(ctx, q.String(), q.args...).Scan(&level)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "%s: read blur level", s.d.name)
	}
	return level, nil
}

func (s *sqlStore) SaveBlurLevel(ctx context.Context, sc StorageContext, level int) error {
	if level < 0 {
		return &ValidationError{Field: "blur level", Reason: "must not be negative"}
	}
	return s.writePreference(ctx, sc, "blur_level", level)
}

func (s *sqlStore) readStrings(ctx context.Context, sc StorageContext, column string) ([]string, error) {
	if !sc.HasWorkspace() {
		return []string{}, nil
	}
	q := s.d.stmt(`SELECT `, column, ` FROM workspaces WHERE id = `)
	q.add(q.arg(sc.WorkspaceID))
	var raw []byte
	err := s.c.queryRow(ctx, q.String(), q.args...).Scan(&raw)
	if isNoRows(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read %s", s.d.name, column)
	}
	out, err := decodeStrings(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "decode %s", column)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (s *sqlStore) writeStrings(ctx context.Context, sc StorageContext, column string, values []string) error {
	enc, err := encodeStrings(values)
	if err != nil {
		return eris.Wrapf(err, "encode %s", column)
	}
	return s.writePreference(ctx, sc, column, enc)
}

func (s *sqlStore) writePreference(ctx context.Context, sc StorageContext, column string, value any) error {
	if !sc.HasWorkspace() {
		return ErrNoWorkspaceSelected
	}
	q := s.d.stmt(`UPDATE workspaces SET `, column, ` = `)
	q.add(q.arg(value), ` WHERE id = `, q.arg(sc.WorkspaceID))
	n, err := s.c.exec(ctx, q.String(), q.args...)
	if err != nil {
		return eris.Wrapf(err, "%s: write %s", s.d.name, column)
	}
	if n == 0 {
		return eris.Wrapf(ErrWorkspaceNotFound, "workspace %s", sc.WorkspaceID)
	}
	zap.L().Debug("preference saved", zap.String("workspace", sc.Workspace), zap.String("field", column))
	return nil
}
