package llm

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// ModelDescriptor describes one selectable provider+model combination.
// The ID is the opaque identifier used for invocation and correlation;
// the display name exists only for presentation.
type ModelDescriptor struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"display_name"`
}

// defaultModels is the built-in catalog. Overridable via a YAML registry
// file (MODEL_REGISTRY_PATH).
var defaultModels = []ModelDescriptor{
	{ID: "anthropic/claude-sonnet-4.5", DisplayName: "Claude Sonnet 4.5"},
	{ID: "anthropic/claude-haiku-4.5", DisplayName: "Claude Haiku 4.5"},
	{ID: "anthropic/claude-3.7-sonnet", DisplayName: "Claude 3.7 Sonnet"},
	{ID: "openai/gpt-5", DisplayName: "GPT-5"},
	{ID: "openai/gpt-4.1", DisplayName: "GPT-4.1"},
	{ID: "openai/gpt-4o", DisplayName: "GPT-4o"},
	{ID: "openai/o3", DisplayName: "O3"},
	{ID: "google/gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro"},
	{ID: "google/gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash"},
	{ID: "xai/grok-4", DisplayName: "Grok 4"},
	{ID: "xai/grok-4-reasoning", DisplayName: "Grok 4 Reasoning"},
	{ID: "xai/grok-4-fast-reasoning", DisplayName: "Grok 4 Fast Reasoning"},
	{ID: "xai/grok-4-fast-non-reasoning", DisplayName: "Grok 4 Fast Non-Reasoning"},
	{ID: "deepseek/deepseek-v3", DisplayName: "DeepSeek V3"},
	{ID: "deepseek/deepseek-r1", DisplayName: "DeepSeek R1"},
	{ID: "meta/llama-3.3-70b", DisplayName: "Llama 3.3 70B"},
}

// Registry maps model identifiers to descriptors.
type Registry struct {
	models []ModelDescriptor
	byID   map[string]ModelDescriptor
}

// NewRegistry returns a registry with the built-in model catalog.
func NewRegistry() *Registry {
	return newRegistry(defaultModels)
}

// NewRegistryFromFile loads a model catalog from a YAML file.
func NewRegistryFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model registry: %w", err)
	}

	var doc struct {
		Models []ModelDescriptor `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse model registry: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("model registry %s contains no models", path)
	}

	return newRegistry(doc.Models), nil
}

func newRegistry(models []ModelDescriptor) *Registry {
	byID := make(map[string]ModelDescriptor, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return &Registry{models: models, byID: byID}
}

// Models returns all descriptors in catalog order.
func (r *Registry) Models() []ModelDescriptor {
	out := make([]ModelDescriptor, len(r.models))
	copy(out, r.models)
	return out
}

// DisplayName resolves an identifier to its display name. Unknown
// identifiers fall back to the raw identifier so they are never dropped.
func (r *Registry) DisplayName(id string) string {
	if m, ok := r.byID[id]; ok {
		return m.DisplayName
	}
	return id
}
