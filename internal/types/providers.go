package types

import "strings"

type RunTarget struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	ReasoningLevel string `json:"reasoning_level,omitempty"`
}

func (t RunTarget) Label() string {
	label := t.Provider + "/" + t.Model
	if strings.TrimSpace(t.ReasoningLevel) != "" {
		label += " (" + t.ReasoningLevel + ")"
	}
	return label
}

type ProviderModel struct {
	Name           string `json:"name"`
	Enabled        bool   `json:"enabled"`
	ReasoningLevel string `json:"reasoning_level,omitempty"`
}

type ProviderConfig struct {
	Name    string          `json:"name"`
	Enabled bool            `json:"enabled"`
	Models  []ProviderModel `json:"models"`
}

// ProviderTree is the provider/model configuration, kept as ordered lists so
// run order follows discovery order.
type ProviderTree struct {
	Providers []ProviderConfig `json:"providers"`
}

// EnabledTargets lists models enabled at both the provider and the model
// level, in tree order.
func (t *ProviderTree) EnabledTargets() []RunTarget {
	if t == nil {
		return nil
	}
	var targets []RunTarget
	for _, provider := range t.Providers {
		if !provider.Enabled {
			continue
		}
		name := strings.TrimSpace(provider.Name)
		if name == "" {
			continue
		}
		for _, model := range provider.Models {
			if !model.Enabled || strings.TrimSpace(model.Name) == "" {
				continue
			}
			targets = append(targets, RunTarget{
				Provider:       name,
				Model:          strings.TrimSpace(model.Name),
				ReasoningLevel: strings.TrimSpace(model.ReasoningLevel),
			})
		}
	}
	return targets
}

func (t *ProviderTree) Clone() *ProviderTree {
	if t == nil {
		return nil
	}
	out := &ProviderTree{Providers: make([]ProviderConfig, 0, len(t.Providers))}
	for _, provider := range t.Providers {
		copied := provider
		copied.Models = append([]ProviderModel(nil), provider.Models...)
		out.Providers = append(out.Providers, copied)
	}
	return out
}

func (t *ProviderTree) provider(name string) *ProviderConfig {
	if t == nil {
		return nil
	}
	for i := range t.Providers {
		if t.Providers[i].Name == name {
			return &t.Providers[i]
		}
	}
	return nil
}

func (t *ProviderTree) RemoveModel(providerName, modelName string) bool {
	provider := t.provider(providerName)
	if provider == nil {
		return false
	}
	for i, model := range provider.Models {
		if model.Name == modelName {
			provider.Models = append(provider.Models[:i], provider.Models[i+1:]...)
			return true
		}
	}
	return false
}

func (t *ProviderTree) ToggleProvider(providerName string) bool {
	provider := t.provider(providerName)
	if provider == nil {
		return false
	}
	provider.Enabled = !provider.Enabled
	return true
}

func (t *ProviderTree) ToggleModel(providerName, modelName string) bool {
	provider := t.provider(providerName)
	if provider == nil {
		return false
	}
	for i := range provider.Models {
		if provider.Models[i].Name == modelName {
			provider.Models[i].Enabled = !provider.Models[i].Enabled
			return true
		}
	}
	return false
}
