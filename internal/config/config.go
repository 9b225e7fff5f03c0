// Package config holds the crash tracker's configuration types and their
// validation. Everything here is resolved before any fault can occur;
// configuration problems are ordinary errors surfaced at init time.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/DataDog/libdatadog/internal/upload"
)

// DefaultTimeout bounds how long the interceptor waits for the receiver to
// acknowledge completion before chaining to the previous signal handler.
const DefaultTimeout = 5 * time.Second

// ResolvePolicy selects where (and whether) stack frames are symbolized.
// Stack collection runs in the context of a crashing process; resolution
// can allocate or block, which is unacceptable inside a signal handler but
// perfectly safe in the receiver.
type ResolvePolicy int

const (
	// ResolveDisabled ships raw frames only.
	ResolveDisabled ResolvePolicy = iota
	// ResolveInProcess symbolizes immediately; acceptable because it only
	// reads already-mapped debug data.
	ResolveInProcess
	// ResolveViaReceiver ships raw frames and lets the receiver symbolize
	// in its own unconstrained execution context.
	ResolveViaReceiver
)

func (p ResolvePolicy) String() string {
	switch p {
	case ResolveDisabled:
		return "disabled"
	case ResolveInProcess:
		return "in_process"
	case ResolveViaReceiver:
		return "via_receiver"
	default:
		return fmt.Sprintf("resolve_policy(%d)", int(p))
	}
}

// ParseResolvePolicy maps a config string to a policy.
func ParseResolvePolicy(s string) (ResolvePolicy, error) {
	switch s {
	case "", "disabled":
		return ResolveDisabled, nil
	case "in_process":
		return ResolveInProcess, nil
	case "via_receiver":
		return ResolveViaReceiver, nil
	default:
		return ResolveDisabled, fmt.Errorf("unknown resolve policy %q", s)
	}
}

// Config controls the crash capture pipeline in the monitored process.
type Config struct {
	// AdditionalFiles are attached to every report by the receiver.
	AdditionalFiles []string
	// CreateAltStack and UseAltStack describe the alternate signal stack
	// policy. The Go runtime installs and owns its own signal stacks, so
	// these are validated and carried for configuration compatibility but
	// do not change how handlers run.
	CreateAltStack bool
	UseAltStack    bool
	// Endpoint is where the finished report goes.
	Endpoint *upload.Endpoint
	// ResolveFrames selects the symbolization tier.
	ResolveFrames ResolvePolicy
	// Timeout bounds the wait for receiver acknowledgement.
	Timeout time.Duration
	// Signals is the monitored signal set; DefaultSignals when empty.
	Signals []os.Signal
}

// NewConfig validates and normalizes a configuration.
func NewConfig(cfg Config) (*Config, error) {
	// Creating an altstack without using it is paradoxical.
	if cfg.CreateAltStack && !cfg.UseAltStack {
		return nil, fmt.Errorf("cannot create an altstack without using it")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("negative timeout %v", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = DefaultSignals()
	}
	return &cfg, nil
}

// ReceiverConfig describes how to launch the receiver process.
type ReceiverConfig struct {
	// BinaryPath is the receiver executable.
	BinaryPath string
	// Args and Env are passed through to the process verbatim.
	Args []string
	Env  []string
	// StdoutFile and StderrFile optionally redirect receiver output.
	StdoutFile string
	StderrFile string
}

// NewReceiverConfig validates a receiver launch description.
func NewReceiverConfig(cfg ReceiverConfig) (*ReceiverConfig, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("receiver binary path is required")
	}
	if cfg.StdoutFile != "" && cfg.StdoutFile == cfg.StderrFile {
		return nil, fmt.Errorf(
			"stdout (%s) and stderr (%s) redirection files conflict with each other",
			cfg.StdoutFile, cfg.StderrFile)
	}
	return &cfg, nil
}
