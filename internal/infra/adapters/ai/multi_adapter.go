package ai

import (
	"context"

	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
)

var _ adapter.Completer = (*MultiCompleter)(nil)

// MultiCompleter routes by provider key. SDK-transport providers with a
// registered SDK completer use it; everything else goes over raw HTTP.
type MultiCompleter struct {
	fallback   adapter.Completer
	byProvider map[model.ProviderKey]adapter.Completer
}

func NewMultiCompleter(fallback adapter.Completer, byProvider map[model.ProviderKey]adapter.Completer) *MultiCompleter {
	if byProvider == nil {
		byProvider = map[model.ProviderKey]adapter.Completer{}
	}
	return &MultiCompleter{fallback: fallback, byProvider: byProvider}
}

func (m *MultiCompleter) pick(p model.ProviderConfig) adapter.Completer {
	if p.Transport == model.TransportSDK {
		if c := m.byProvider[p.Key]; c != nil {
			return c
		}
	}
	return m.fallback
}

func (m *MultiCompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	return m.pick(p).Complete(ctx, p, prompt)
}
