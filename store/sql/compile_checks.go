package sqlstore

import "github.com/goliatone/go-rewards/core"

var (
	_ core.EntitlementStore       = (*EntitlementStore)(nil)
	_ core.EntitlementExtender    = (*EntitlementStore)(nil)
	_ core.IdempotencyStore       = (*IdempotencyStore)(nil)
	_ core.IdempotencyClaimer     = (*IdempotencyStore)(nil)
	_ core.MarkerRetentionStore   = (*IdempotencyStore)(nil)
	_ core.EntitlementExtender    = (*CachedEntitlementStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
