/*
Package cli implements the recall-cycle commands.

Each command is built by a NewXxxCmd constructor so main stays a plain
assembly point. Commands load configuration themselves; there is no
shared global state between them.
*/
package cli

import (
	"errors"
	"fmt"

	"github.com/hoangvle/recall-cycle/internal/config"
	"github.com/hoangvle/recall-cycle/internal/errs"
	"github.com/hoangvle/recall-cycle/internal/gate"
	"github.com/hoangvle/recall-cycle/internal/generate"
	"github.com/hoangvle/recall-cycle/internal/logging"
	"github.com/hoangvle/recall-cycle/internal/notestore"
	"github.com/hoangvle/recall-cycle/internal/phase"
	"github.com/hoangvle/recall-cycle/internal/runlog"
)

// commonFlags are shared by every command that touches a space.
type commonFlags struct {
	configPath string
	space      string
}

func (f *commonFlags) load() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.space != "" {
		cfg.Space = f.space
	}
	return cfg, nil
}

// runtime bundles everything a full cycle run needs.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	client notestore.Client
	gate   *gate.Gate
	runs   *runlog.Store
	runner *phase.Runner
}

// newRuntime wires the run stack. A missing LLM key downgrades to a run
// without generation instead of failing; selection and reconciliation do
// not depend on the provider.
func newRuntime(cfg *config.Config, service string) (*runtime, error) {
	logger := logging.New(logging.Config{Level: cfg.Log.Level, LogDir: cfg.Log.Dir, Service: service})
	client := notestore.NewHTTPClient(cfg.NoteStore.URL, cfg.NoteStore.Version)
	g := gate.New(cfg.RateLimit, cfg.UsagePath(), logger)

	runs := runlog.NewStore(cfg.RunlogPath(), logger)
	if err := runs.Init(); err != nil {
		logger.Warn("run log unavailable", "error", err)
	}

	var gen generate.Generator
	llm, err := generate.NewLLM(cfg.LLM, g, logger)
	switch {
	case err == nil:
		gen = llm
	case errs.CodeOf(err) == "LLM_KEY_MISSING":
		logger.Warn("generation disabled", "reason", err.Error())
	default:
		logger.Close()
		return nil, err
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		client: client,
		gate:   g,
		runs:   runs,
		runner: phase.New(cfg, client, gen, g, runs, logger),
	}, nil
}

func (rt *runtime) close() {
	rt.runs.Close()
	rt.logger.Close()
}

// exitMessage maps classified errors to a terse operator-facing line.
func exitMessage(err error) string {
	var de *errs.Error
	if errors.As(err, &de) {
		return fmt.Sprintf("%s: %s", de.Code, de.Message)
	}
	return err.Error()
}
