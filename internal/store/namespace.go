package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

const (
	KeyGlobalSettings   = "globalSettings"
	KeyPerItemOverrides = "perItemOverrides"
	KeySelectedItem     = "selectedItem"
	KeyActiveTab        = "activeTab"
	KeyDestination      = "destination"
)

// Namespace scopes keys to a single screen as "<screen>:<key>".
type Namespace struct {
	kv     KVStore
	screen string
}

func NewNamespace(kv KVStore, screen string) (*Namespace, error) {
	if kv == nil {
		return nil, errors.New("kv store is required")
	}
	screen = strings.TrimSpace(screen)
	if screen == "" {
		return nil, errors.New("screen is required")
	}
	return &Namespace{kv: kv, screen: screen}, nil
}

func (n *Namespace) Screen() string {
	if n == nil {
		return ""
	}
	return n.screen
}

func (n *Namespace) Key(key string) string {
	return n.screen + ":" + strings.TrimSpace(key)
}

// GetJSON decodes the value stored under key into out. A missing key returns
// ok=false and leaves out untouched.
func (n *Namespace) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := n.kv.Get(ctx, n.Key(key))
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (n *Namespace) PutJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return n.kv.Put(ctx, n.Key(key), raw)
}

func (n *Namespace) GetString(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := n.kv.Get(ctx, n.Key(key))
	if err != nil || !ok {
		return "", false, err
	}
	return string(raw), true, nil
}

func (n *Namespace) PutString(ctx context.Context, key, value string) error {
	return n.kv.Put(ctx, n.Key(key), []byte(value))
}

func (n *Namespace) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.Key(key))
}

// Clear removes every key of the screen.
func (n *Namespace) Clear(ctx context.Context) error {
	keys, err := n.kv.Keys(ctx, n.screen+":")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := n.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
