package main

import (
	"context"
	"fmt"

	"github.com/kalambet/mmx/internal/backend"
	"github.com/kalambet/mmx/internal/config"
	"github.com/kalambet/mmx/internal/controller"
)

// app bundles the configured backend client and the session controller that
// every command operates on.
type app struct {
	cfg     config.Config
	client  *backend.Client
	session *controller.Session
}

var newApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.StaticURL, cfg.Timeout())
	session := controller.NewSession(client, cliNotifier{})

	return &app{
		cfg:     cfg,
		client:  client,
		session: session,
	}, nil
}

// selectCollection refreshes the registry and applies the collection
// selection: an explicit override wins, then the configured default, then
// the registry's own auto-selection. Transport failures on the refresh are
// advisory, not fatal.
func (a *app) selectCollection(ctx context.Context, override string) error {
	if _, err := a.session.Registry.Refresh(ctx); err != nil {
		printWarning("%v", err)
	}

	switch {
	case override != "":
		a.session.Registry.SetActive(override)
		if a.session.Registry.Active() != override {
			return fmt.Errorf("unknown collection %q", override)
		}
	case a.cfg.Collection.Default != "":
		a.session.Registry.SetActive(a.cfg.Collection.Default)
	}

	if a.session.Registry.Active() == "" {
		return fmt.Errorf("no collections exist yet; create one with `mmx collections create <name>`")
	}
	return nil
}

// cliNotifier surfaces the pipeline's external notifications on the terminal.
type cliNotifier struct{}

func (cliNotifier) ItemSucceeded(item controller.UploadItem) {
	printSuccess("Indexed %s", item.Filename)
}

func (cliNotifier) BatchCompleted(succeeded int) {
	printStep("Batch done: %d file(s) indexed and searchable", succeeded)
}
