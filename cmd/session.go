package cmd

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/conneroisu/protoplast/internal/config"
	"github.com/conneroisu/protoplast/internal/loader"
	"github.com/conneroisu/protoplast/internal/logging"
	"github.com/conneroisu/protoplast/internal/manager"
	"github.com/conneroisu/protoplast/internal/world"
)

// session is the state every command starts from: configuration, a manager
// over an in-memory world and a loader feeding it.
type session struct {
	config   *config.Config
	settings *config.ProtoConfig
	logger   logging.Logger
	world    *world.Memory
	manager  *manager.Manager
	loader   *loader.Loader
	printer  *message.Printer
}

func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	settings, err := config.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	w := world.NewMemory()
	m := manager.New(w,
		manager.WithHooks(settings.Hooks()),
		manager.WithLogger(logger))

	return &session{
		config:   cfg,
		settings: settings,
		logger:   logger,
		world:    w,
		manager:  m,
		loader:   loader.New(m, settings, cfg.Sources.Exclude, logger),
		printer:  message.NewPrinter(language.English),
	}, nil
}

// load registers every template below the configured source paths.
func (s *session) load(ctx context.Context) ([]loader.Result, error) {
	return s.loader.LoadDir(ctx, s.config.Sources.Paths...)
}
