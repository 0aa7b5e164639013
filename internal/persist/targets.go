package persist

import (
	"context"
	"errors"
	"strings"

	"reviewdeck/internal/store"
	"reviewdeck/internal/types"
)

const (
	SourceRemote   = "remote"
	SourceLocal    = "local"
	SourceDefaults = "defaults"
)

// Target is one place settings can be persisted to. Load reports found=false
// for an absent or empty record.
type Target interface {
	Name() string
	Load(ctx context.Context) (*types.Settings, bool, error)
	Save(ctx context.Context, settings *types.Settings) error
	Clear(ctx context.Context) error
}

type SettingsAPI interface {
	GetSettings(ctx context.Context, scope string, out any) (bool, error)
	SaveSettings(ctx context.Context, scope string, value any) error
	DeleteSettings(ctx context.Context, scope string) error
}

type RemoteTarget struct {
	api   SettingsAPI
	scope string
}

func NewRemoteTarget(api SettingsAPI, scope string) (*RemoteTarget, error) {
	if api == nil {
		return nil, errors.New("settings api is required")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("settings scope is required")
	}
	return &RemoteTarget{api: api, scope: scope}, nil
}

func (t *RemoteTarget) Name() string { return SourceRemote }

func (t *RemoteTarget) Load(ctx context.Context) (*types.Settings, bool, error) {
	settings := types.DefaultSettings()
	found, err := t.api.GetSettings(ctx, t.scope, settings)
	if err != nil || !found {
		return nil, false, err
	}
	return settings, true, nil
}

func (t *RemoteTarget) Save(ctx context.Context, settings *types.Settings) error {
	return t.api.SaveSettings(ctx, t.scope, settings)
}

func (t *RemoteTarget) Clear(ctx context.Context) error {
	return t.api.DeleteSettings(ctx, t.scope)
}

// LocalTarget stores settings in the per-screen namespace as two keys,
// globalSettings and perItemOverrides.
type LocalTarget struct {
	ns *store.Namespace
}

func NewLocalTarget(ns *store.Namespace) (*LocalTarget, error) {
	if ns == nil {
		return nil, errors.New("namespace is required")
	}
	return &LocalTarget{ns: ns}, nil
}

func (t *LocalTarget) Name() string { return SourceLocal }

func (t *LocalTarget) Load(ctx context.Context) (*types.Settings, bool, error) {
	settings := types.DefaultSettings()
	foundGlobal, err := t.ns.GetJSON(ctx, store.KeyGlobalSettings, &settings.Global)
	if err != nil {
		return nil, false, err
	}
	overrides := map[types.ItemID]types.ItemOverride{}
	foundOverrides, err := t.ns.GetJSON(ctx, store.KeyPerItemOverrides, &overrides)
	if err != nil {
		return nil, false, err
	}
	if !foundGlobal && !foundOverrides {
		return nil, false, nil
	}
	if len(overrides) > 0 {
		settings.PerItemOverrides = overrides
	}
	return settings, true, nil
}

func (t *LocalTarget) Save(ctx context.Context, settings *types.Settings) error {
	if settings == nil {
		return errors.New("settings are required")
	}
	if err := t.ns.PutJSON(ctx, store.KeyGlobalSettings, settings.Global); err != nil {
		return err
	}
	overrides := settings.PerItemOverrides
	if overrides == nil {
		overrides = map[types.ItemID]types.ItemOverride{}
	}
	return t.ns.PutJSON(ctx, store.KeyPerItemOverrides, overrides)
}

func (t *LocalTarget) Clear(ctx context.Context) error {
	if err := t.ns.Delete(ctx, store.KeyGlobalSettings); err != nil {
		return err
	}
	return t.ns.Delete(ctx, store.KeyPerItemOverrides)
}
