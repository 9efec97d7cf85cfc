package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-rewards/core"
)

func TestProcessCallbackMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ProcessCallbackMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.RewardErrorUnrecognizedValue {
		t.Fatalf("expected %q text code, got %q", core.RewardErrorUnrecognizedValue, rich.TextCode)
	}
}

func TestProcessCallbackCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *ProcessCallbackCommand
	err := cmd.Execute(context.Background(), ProcessCallbackMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
