// Package command exposes the reward mutations as go-command messages
// so hosts can route callbacks through their dispatcher or queue.
package command

import (
	"strings"

	"github.com/goliatone/go-rewards/core"
)

const (
	TypeProcessCallback = "rewards.command.callback.process"
	TypeSweepMarkers    = "rewards.command.markers.sweep"
)

type ProcessCallbackMessage struct {
	Callback core.Callback
}

func (ProcessCallbackMessage) Type() string { return TypeProcessCallback }

func (m ProcessCallbackMessage) Validate() error {
	if err := m.Callback.Platform.Validate(); err != nil {
		return commandWrapValidation(err, "command: callback platform is invalid")
	}
	if strings.TrimSpace(m.Callback.RawQuery) == "" {
		return commandValidationError("raw_query", "callback query string is required")
	}
	return nil
}

type SweepMarkersMessage struct{}

func (SweepMarkersMessage) Type() string { return TypeSweepMarkers }

func (SweepMarkersMessage) Validate() error { return nil }
