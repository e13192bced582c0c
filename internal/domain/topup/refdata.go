package topup

import "context"

// ReferenceData checks the existence of the account/project/channel metadata
// a top-up request points at. The metadata itself is owned elsewhere; the
// workflow only needs the referential check at creation time.
type ReferenceData interface {
	AdAccountExists(ctx context.Context, id string) (bool, error)
	ProjectExists(ctx context.Context, id string) (bool, error)
	ChannelExists(ctx context.Context, id string) (bool, error)
}
