package build

import (
	"context"
	"log/slog"

	dberrors "git.home.luguber.info/inful/stylebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/stylebuild/internal/logfields"
)

// Fail applies the error policy to err. It returns err when fatal is set or
// the builder is strict, which aborts the run. Otherwise the error is logged
// and Fail returns nil so the run continues.
func (b *Builder) Fail(err error, fatal bool) error {
	if err == nil {
		return nil
	}
	if fatal || b.Strict {
		return err
	}
	if b.logger == nil {
		return nil
	}

	attrs := []slog.Attr{slog.String("category", string(dberrors.GetCategory(err)))}
	if classified, ok := dberrors.AsClassified(err); ok {
		if stage, ok := classified.Context().GetString("stage"); ok {
			attrs = append(attrs, logfields.Stage(stage))
		}
	}
	b.logger.LogAttrs(context.Background(), slog.LevelWarn, dberrors.Describe(err, b.Verbose), attrs...)
	return nil
}
