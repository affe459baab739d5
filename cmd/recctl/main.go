// recctl drives a running recorder over gRPC, or serves it to agents as MCP tools.
package main

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/screenrec/internal/grpcclient"
	"github.com/GriffinCanCode/screenrec/internal/resilience"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	app := newCLIApp(dialRecorder)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// dialRecorder connects to addr. One-shot commands fail fast; the MCP server
// is long-running and tolerates longer outages.
func dialRecorder(addr string, longRunning bool) (recorder, error) {
	breaker := resilience.CLIConfig()
	if longRunning {
		breaker = resilience.DefaultConfig()
	}
	c, err := grpcclient.New(addr, grpcclient.Options{Breaker: breaker})
	if err != nil {
		return nil, err
	}
	return c, nil
}
