// The worker binary hosts a single styling engine for another process.
// Requests arrive on stdin, responses leave on stdout, logs go to stderr
// so the transport stays clean.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"stylo/config"
	"stylo/misc"
	"stylo/wire"
	"stylo/worker"
)

// ConfigEnv points the worker at an optional configuration file, mostly
// useful to turn on file logging when debugging the wire protocol.
const ConfigEnv = "STYLO_WORKER_CONFIG"

func main() {
	misc.SetAppName("stylo-worker")

	// lifecycle belongs to the host, terminal interrupts are delivered to
	// the whole process group
	signal.Ignore(os.Interrupt)

	cfg, err := config.LoadConfiguration(os.Getenv(ConfigEnv))
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to prepare configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := cfg.Logging.Prepare(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to prepare logs: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Debug("Worker started", zap.Int("pid", os.Getpid()), zap.String("ver", misc.GetVersion()))

	if err := worker.Serve(wire.NewConn(os.Stdin, os.Stdout), log); err != nil {
		log.Error("Worker ended with error", zap.Error(err))
		os.Exit(1)
	}
	log.Debug("Worker ended")
}
