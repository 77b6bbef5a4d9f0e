package orchestrator

import (
	"errors"

	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
	"github.com/kerrakir/config-converter/pkg/orchestrator/resolver"
)

var (
	// ErrBusy is returned by Start while a job is starting or running. The running
	// job is not affected and nothing is spawned.
	ErrBusy = errors.New("conversion is already running")

	// ErrStart indicates the converter process could not be started: the spawn failed
	// or was not confirmed within the start timeout. The job is reported as Failed.
	ErrStart = errors.New("failed to start converter process")

	// ErrStartTimeout is wrapped together with ErrStart when the spawn was not
	// confirmed in time. A process that appears after the deadline is killed.
	ErrStartTimeout = errors.New("converter process start timed out")

	// ErrConfiguration is the category of resolver failures. Start reports it
	// synchronously, emits no notifications and leaves the state unchanged.
	ErrConfiguration = resolver.ErrConfiguration

	// ErrBundledExecutableMissing: packaged deployment without the converter binary.
	ErrBundledExecutableMissing = resolver.ErrBundledExecutableMissing

	// ErrNoExecutable: no binary and no build tool.
	ErrNoExecutable = resolver.ErrNoExecutable

	// ErrInvalidRequest is returned for requests that fail validation.
	ErrInvalidRequest = request.ErrInvalidRequest
)
