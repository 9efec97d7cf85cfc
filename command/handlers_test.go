package command

import (
	"context"
	"testing"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-rewards/core"
)

type stubCreditingService struct {
	processFn func(ctx context.Context, cb core.Callback) (core.Grant, error)
}

func (s stubCreditingService) Process(ctx context.Context, cb core.Callback) (core.Grant, error) {
	return s.processFn(ctx, cb)
}

type stubSweepingService struct {
	sweepFn func(ctx context.Context) (int, error)
}

func (s stubSweepingService) Sweep(ctx context.Context) (int, error) {
	return s.sweepFn(ctx)
}

func TestProcessCallbackCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.Grant{
		Reward: core.VerifiedReward{
			EventID:    "tx1",
			UserID:     "u1",
			RewardType: core.RewardTypeAdFree,
		},
		ExpiresAt: time.Now().UTC().Add(72 * time.Hour),
	}
	called := false

	svc := stubCreditingService{
		processFn: func(_ context.Context, cb core.Callback) (core.Grant, error) {
			called = true
			if cb.Platform != core.PlatformAdMob {
				t.Fatalf("expected admob callback, got %q", cb.Platform)
			}
			return expected, nil
		},
	}

	cmd := NewProcessCallbackCommand(svc)
	collector := gocmd.NewResult[core.Grant]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, ProcessCallbackMessage{Callback: core.Callback{
		Platform: core.PlatformAdMob,
		RawQuery: "transaction_id=tx1",
	}})
	if err != nil {
		t.Fatalf("execute process callback: %v", err)
	}
	if !called {
		t.Fatalf("expected crediting service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected grant to be stored")
	}
	if result.Reward.EventID != expected.Reward.EventID || !result.ExpiresAt.Equal(expected.ExpiresAt) {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestProcessCallbackCommand_RejectsInvalidMessage(t *testing.T) {
	cmd := NewProcessCallbackCommand(stubCreditingService{
		processFn: func(context.Context, core.Callback) (core.Grant, error) {
			t.Fatalf("service must not run for invalid messages")
			return core.Grant{}, nil
		},
	})

	err := cmd.Execute(context.Background(), ProcessCallbackMessage{Callback: core.Callback{
		Platform: core.PlatformAdMob,
	}})
	if err == nil {
		t.Fatalf("expected validation error for empty query")
	}
}

func TestSweepMarkersCommand_StoresDeletedCount(t *testing.T) {
	cmd := NewSweepMarkersCommand(stubSweepingService{
		sweepFn: func(context.Context) (int, error) { return 4, nil },
	})

	collector := gocmd.NewResult[int]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, SweepMarkersMessage{}); err != nil {
		t.Fatalf("execute sweep: %v", err)
	}
	deleted, ok := collector.Load()
	if !ok {
		t.Fatalf("expected deleted count to be stored")
	}
	if deleted != 4 {
		t.Fatalf("expected 4, got %d", deleted)
	}
}

func TestCommands_NilServiceReturnsDependencyError(t *testing.T) {
	var processCmd *ProcessCallbackCommand
	if err := processCmd.Execute(context.Background(), ProcessCallbackMessage{}); err == nil {
		t.Fatalf("expected dependency error from nil process command")
	}

	var sweepCmd *SweepMarkersCommand
	if err := sweepCmd.Execute(context.Background(), SweepMarkersMessage{}); err == nil {
		t.Fatalf("expected dependency error from nil sweep command")
	}
}
