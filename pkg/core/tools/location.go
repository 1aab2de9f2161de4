package tools

import (
	"context"

	"github.com/railvoice/conductor/pkg/geo"
)

// LocationHandler answers get_user_location through a one-shot,
// permission-gated locator.
type LocationHandler struct {
	Locator geo.Locator
}

// Name implements Handler.
func (LocationHandler) Name() string { return NameGetUserLocation }

// Call resolves the device position once. Denied permission surfaces as an
// error result; there is no retry here, the remote side decides whether to
// ask again.
func (h LocationHandler) Call(ctx context.Context, _ map[string]any) (any, error) {
	pos, err := h.Locator.CurrentPosition(ctx)
	if err != nil {
		return nil, err
	}
	return pos, nil
}
