package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-rewards/core"
)

// CreditingService is satisfied by the granter or by a command-bus
// wrapper around it.
type CreditingService interface {
	Process(ctx context.Context, cb core.Callback) (core.Grant, error)
}

// Request is one raw callback delivery as the routing layer hands it
// over: the platform segment of the URL plus the untouched query
// string. The query must stay byte-for-byte intact because the
// asymmetric scheme signs over its original encoding.
type Request struct {
	Platform string
	RawQuery string
	Metadata map[string]any
}

// Result is the boundary outcome. StatusCode is always set, for
// failures as well, so transports can acknowledge without re-deriving
// the taxonomy mapping.
type Result struct {
	StatusCode int
	Accepted   bool
	Deduped    bool
	Grant      core.Grant
	Metadata   map[string]any
}

type Dispatcher struct {
	service CreditingService
	logger  core.Logger
}

type DispatcherOption func(*Dispatcher)

func WithLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDispatcher(service CreditingService, options ...DispatcherOption) (*Dispatcher, error) {
	if service == nil {
		return nil, inboundInternal("inbound: crediting service is required", nil)
	}
	_, logger := glog.Resolve("rewards", nil, nil)
	dispatcher := &Dispatcher{
		service: service,
		logger:  logger,
	}
	for _, option := range options {
		if option != nil {
			option(dispatcher)
		}
	}
	return dispatcher, nil
}

// Dispatch resolves the platform, hands the raw query to the crediting
// service, and folds the outcome into a transport-ready result. The
// returned error carries the same taxonomy classification the result's
// status code was derived from.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if d == nil || d.service == nil {
		err := inboundInternal("inbound: dispatcher is not configured", nil)
		return failureResult("", err), err
	}

	platform := core.Platform(strings.ToLower(strings.TrimSpace(req.Platform)))
	if err := platform.Validate(); err != nil {
		wrapped := inboundBadInput(
			fmt.Sprintf("inbound: unsupported platform %q", req.Platform),
			map[string]any{"platform": req.Platform},
		)
		return failureResult(string(platform), wrapped), wrapped
	}
	if strings.TrimSpace(req.RawQuery) == "" {
		err := inboundBadInput("inbound: callback query string is required", map[string]any{
			"platform": string(platform),
		})
		return failureResult(string(platform), err), err
	}

	grant, err := d.service.Process(ctx, core.Callback{
		Platform: platform,
		RawQuery: req.RawQuery,
		Metadata: req.Metadata,
	})
	if err != nil {
		d.logger.Error(
			"callback rejected",
			"platform", string(platform),
			"status", core.HTTPStatus(err),
			"error", err,
		)
		return failureResult(string(platform), err), err
	}

	return Result{
		StatusCode: http.StatusOK,
		Accepted:   true,
		Deduped:    grant.Deduped,
		Grant:      grant,
		Metadata: map[string]any{
			"platform": string(platform),
			"deduped":  grant.Deduped,
		},
	}, nil
}

func failureResult(platform string, err error) Result {
	metadata := map[string]any{"rejected": true}
	if platform != "" {
		metadata["platform"] = platform
	}
	return Result{
		StatusCode: core.HTTPStatus(err),
		Metadata:   metadata,
	}
}
