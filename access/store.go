package access

import "context"

// Store reads persisted role grants.
type Store interface {
	ListGrants(ctx context.Context) ([]*Grant, error)
}
