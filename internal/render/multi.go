package render

import (
	"context"
	"errors"

	"github.com/goodnatureofminers/blockpie/internal/model"
	"github.com/goodnatureofminers/blockpie/internal/poller"
)

// Multi hands the same report to every renderer. One failing renderer does
// not stop the others; all errors are joined.
type Multi []poller.Renderer

func (m Multi) Render(ctx context.Context, report model.Report) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Render(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
