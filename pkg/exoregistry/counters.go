package exoregistry

import (
	"context"

	"github.com/function61/exohost/pkg/exotypes"
)

// view/download counting rides on the store's atomic increment - the one place
// where store atomicity is load-bearing, since concurrent increments from
// independent workers must not be lost.
//
// counting is observability, not the primary contract: a failed increment is
// logged and swallowed so it can never fail the retrieval it annotates. only
// call these after the read path has confirmed the asset exists.

func (r *Registry) RecordView(ctx context.Context, id string) {
	r.recordEvent(ctx, id, exotypes.FieldViews, MeterViews)
}

func (r *Registry) RecordDownload(ctx context.Context, id string) {
	r.recordEvent(ctx, id, exotypes.FieldDownloads, MeterDownloads)
}

func (r *Registry) recordEvent(ctx context.Context, id string, field string, meterName string) {
	if _, err := r.store.HIncrBy(ctx, id, field, 1); err != nil {
		r.logl.Error.Printf("%s counter for %s: %v", field, id, err)
	}

	r.meters.Mark(meterName)
}
