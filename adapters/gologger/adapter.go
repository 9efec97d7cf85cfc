// Package gologger bridges the engine's logger resolution onto the
// go-job logger contracts the queue worker adapters consume.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-rewards/core"
)

// Resolve resolves the engine's provider/logger pair with precedence
// provider > logger > nop.
func Resolve(name string, provider core.LoggerProvider, logger core.Logger) (core.LoggerProvider, core.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider maps the engine's logger provider to the go-job
// provider contract.
func ToJobProvider(provider core.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps an engine logger to the go-job logger contract.
func ToJobLogger(logger core.Logger) job.Logger {
	return job.GoLogger(resolveLogger(logger))
}

// JobLogger resolves the engine's provider/logger pair and returns the
// go-job logger a queue worker runs with, named after the job it runs.
func JobLogger(name string, provider core.LoggerProvider, logger core.Logger) job.Logger {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	if jobProvider := ToJobProvider(resolvedProvider); jobProvider != nil {
		return jobProvider.GetLogger(name)
	}
	return ToJobLogger(resolvedLogger)
}

func resolveLogger(logger core.Logger) core.Logger {
	if logger == nil {
		return glog.Nop()
	}
	return logger
}
