package api

import (
	"fmt"

	"spacegun/internal/config"
)

// ExecutionContext decides where procedures run.
type ExecutionContext int

const (
	Standalone ExecutionContext = iota
	Client
	Server
)

func (e ExecutionContext) String() string {
	switch e {
	case Standalone:
		return "standalone"
	case Client:
		return "client"
	case Server:
		return "server"
	}
	return fmt.Sprintf("ExecutionContext(%d)", int(e))
}

// ExecutesLocally reports whether adapters are registered in this process.
func (e ExecutionContext) ExecutesLocally() bool {
	return e != Client
}

// ExecutionContextFor maps the configured mode.
func ExecutionContextFor(mode config.Mode) (ExecutionContext, error) {
	switch mode {
	case config.ModeStandalone, "":
		return Standalone, nil
	case config.ModeClient:
		return Client, nil
	case config.ModeServer:
		return Server, nil
	}
	return Standalone, fmt.Errorf("unknown mode %q", mode)
}
