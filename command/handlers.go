package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-rewards/core"
)

// CreditingService is the mutation surface the commands delegate to.
type CreditingService interface {
	Process(ctx context.Context, cb core.Callback) (core.Grant, error)
}

// SweepingService removes expired processed-event markers.
type SweepingService interface {
	Sweep(ctx context.Context) (int, error)
}

type ProcessCallbackCommand struct {
	service CreditingService
}

func NewProcessCallbackCommand(service CreditingService) *ProcessCallbackCommand {
	return &ProcessCallbackCommand{service: service}
}

func (c *ProcessCallbackCommand) Execute(ctx context.Context, msg ProcessCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: crediting service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	grant, err := c.service.Process(ctx, msg.Callback)
	if err != nil {
		return err
	}
	storeResult(ctx, grant)
	return nil
}

type SweepMarkersCommand struct {
	service SweepingService
}

func NewSweepMarkersCommand(service SweepingService) *SweepMarkersCommand {
	return &SweepMarkersCommand{service: service}
}

func (c *SweepMarkersCommand) Execute(ctx context.Context, msg SweepMarkersMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sweeping service is required")
	}
	deleted, err := c.service.Sweep(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, deleted)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
