package publishers

import (
	"context"
	"errors"
	"fmt"
)

// Fanout mirrors each emitted record to every configured sink.
type Fanout struct {
	sinks []Publisher
}

// NewFanout skips nil entries so a partially built list is safe to close.
func NewFanout(sinks []Publisher) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Publish hands evt to each sink and reports how many accepted it.
// A failing sink does not stop delivery to the others.
func (f *Fanout) Publish(ctx context.Context, evt Event) (int, error) {
	if f == nil {
		return 0, nil
	}
	delivered := 0
	var errs []error
	for _, s := range f.sinks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.Publish(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("mirror %s/%s to %s %q: %w",
				evt.Board, evt.Article.ArticleID, s.Type(), s.ID(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Size is the number of sinks.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.sinks)
}

// Close releases sinks that hold client connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		c, ok := s.(closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s %q: %w", s.Type(), s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
