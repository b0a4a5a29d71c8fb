package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/obsidianstack/funnelstack/pkg/types"
	"github.com/obsidianstack/funnelstack/server/internal/config"
)

// ErrSourceUnavailable is wrapped by every error caused by the stage data
// being unreadable or malformed.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source yields the funnel stages in order, earliest stage first.
type Source interface {
	Stages(ctx context.Context) ([]types.StageRecord, error)
}

// New returns the Source described by cfg. The returned closer releases any
// resources the source holds and is never nil.
func New(cfg config.DataConfig) (Source, func() error, error) {
	switch cfg.Driver {
	case config.DriverFile, "":
		return NewFile(cfg.Path), func() error { return nil }, nil
	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.DSN, cfg.Query)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("source: unsupported driver %q", cfg.Driver)
	}
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSourceUnavailable, fmt.Sprintf(format, args...))
}
