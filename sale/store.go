package sale

import "context"

// Store persists the sale state singleton.
type Store interface {
	// GetState returns the persisted state or dcolock.ErrStateNotFound.
	GetState(ctx context.Context) (*State, error)
}
