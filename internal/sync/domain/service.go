package domain

import "context"

// Service is the entry point invoked by the event source for each inbound
// commerce event. Processing is self-contained per event: resolve, expand,
// apply, report.
type Service interface {
	HandleCommerceEvent(ctx context.Context, event CommerceEvent) (ProcessingResult, error)
}
