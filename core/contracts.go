package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Verifier authenticates one network's raw callback and converts it to
// the platform-agnostic payload. Implementations are stateless per
// request; the only long-lived state allowed is an internal signing-key
// cache.
type Verifier interface {
	Platform() Platform
	Verify(ctx context.Context, cb Callback) (VerifiedReward, error)
}

// RuleSource reads the live reward business rules. Load is called once
// per callback and must reflect remote configuration changes
// immediately, so implementations must not memoize results.
type RuleSource interface {
	Load(ctx context.Context) (RewardRules, error)
}

// EntitlementStore is keyed read/create/update access to per-user
// entitlement records. Get returns ErrEntitlementsNotFound (possibly
// wrapped) when the user has no record yet.
type EntitlementStore interface {
	Get(ctx context.Context, userID string) (UserEntitlements, error)
	Create(ctx context.Context, entitlements UserEntitlements) (UserEntitlements, error)
	Update(ctx context.Context, entitlements UserEntitlements) (UserEntitlements, error)
}

// EntitlementExtender is an optional upgrade an EntitlementStore can
// provide: an atomic merge of one reward window computed inside the
// store. When present the orchestrator prefers it over its own
// read-modify-write sequence, which is not safe under concurrent grants
// for the same user and reward type.
type EntitlementExtender interface {
	Extend(
		ctx context.Context,
		userID string,
		reward RewardType,
		duration time.Duration,
		now time.Time,
	) (time.Time, error)
}

// IdempotencyStore tracks fully processed external events, keyed by
// (scope, eventID). Exists and Record are deliberately separate calls;
// Record must be safe to call for an already-recorded event.
type IdempotencyStore interface {
	Exists(ctx context.Context, scope string, eventID string) (bool, error)
	Record(ctx context.Context, scope string, eventID string) error
}

// IdempotencyClaimer is the hardened single-call alternative: insert
// the marker if absent and report whether this caller won the claim.
// Stores backed by a unique constraint expose it for hosts that accept
// the changed retry-after-rejection semantics.
type IdempotencyClaimer interface {
	Claim(ctx context.Context, scope string, eventID string) (bool, error)
}

// MarkerRetentionStore removes processed-event markers older than the
// cutoff. Retention must exceed the longest redelivery window of any
// integrated network; enforcing that is the host's concern.
type MarkerRetentionStore interface {
	DeleteRecordedBefore(ctx context.Context, scope string, cutoff time.Time) (int, error)
}

// HTTPDoer is the fetch capability the asymmetric verifier uses to
// retrieve published signing keys.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// JobExecutionMessage is the queue-agnostic job contract used by the
// marker retention sweeper; adapters map it onto go-job.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

// StoreProvider exposes the reward stores a repository factory builds.
type StoreProvider interface {
	EntitlementStore() EntitlementStore
	IdempotencyStore() IdempotencyStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}
