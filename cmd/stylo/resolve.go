package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"stylo/config"
	"stylo/dom"
	"stylo/engine"
	"stylo/markup"
	"stylo/state"
)

// boundTarget adapts a registry handle to the markup loader.
type boundTarget struct {
	reg *engine.Registry
	h   engine.Handle
}

func (b boundTarget) CreateNode(id dom.NodeID, text string) (dom.NodeID, error) {
	if got := b.reg.CreateNode(b.h, id, text); got != 0 {
		return got, nil
	}
	return 0, b.reg.LastError(b.h)
}

func (b boundTarget) SetParent(parent, child dom.NodeID) error {
	return b.reg.SetParent(b.h, parent, child)
}

func (b boundTarget) SetAttribute(id dom.NodeID, key, value string) error {
	return b.reg.SetAttribute(b.h, id, key, value)
}

func resolveDocument(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one DOCUMENT argument, got %d", cmd.Args().Len())
	}
	docPath := cmd.Args().Get(0)

	mode := env.Cfg.Engine.Mode
	if name := cmd.String("mode"); len(name) > 0 {
		var err error
		if mode, err = config.ParseEngineMode(name); err != nil {
			return err
		}
	}
	workerPath := env.Cfg.Engine.Worker.Path
	if path := cmd.String("worker"); len(path) > 0 {
		workerPath = path
	}

	env.Log.Info("Resolving document", zap.String("document", docPath), zap.Stringer("mode", mode))

	reg := engine.NewRegistry(env.Log, engine.WithWorkerCommand(workerPath, env.Cfg.Engine.Worker.Args...))
	defer reg.Close()

	h := reg.Init(mode == config.EngineModeSameProcess)
	if h == 0 {
		return fmt.Errorf("unable to initialize styling instance")
	}

	for _, fname := range cmd.StringSlice("css") {
		data, err := os.ReadFile(fname)
		if err != nil {
			return fmt.Errorf("unable to read stylesheet '%s': %w", fname, err)
		}
		if err := reg.AddStylesheet(h, string(data)); err != nil {
			return fmt.Errorf("unable to add stylesheet '%s': %w", fname, err)
		}
	}

	count, err := markup.LoadFile(docPath, boundTarget{reg: reg, h: h})
	if err != nil {
		return fmt.Errorf("unable to load document '%s': %w", docPath, err)
	}
	env.Log.Debug("Document loaded", zap.Int("nodes", count))

	for id := dom.NodeID(0); id <= dom.NodeID(count); id++ {
		resolved, err := reg.Resolve(h, id)
		if err != nil {
			return fmt.Errorf("unable to resolve node %d: %w", id, err)
		}
		fmt.Fprintf(os.Stdout, "node %d\n%s\n", id, resolved.Dump())
	}
	return nil
}
