// pkg/tenants/memory.go
package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type memProvider struct {
	log    *zap.SugaredLogger
	mu     sync.RWMutex
	byCode map[string]Client
	byKey  map[TenantKey]Client
}

// NewMemoryProvider returns a provider holding the given clients.
func NewMemoryProvider(log *zap.SugaredLogger, clients ...Client) Provider {
	p := &memProvider{log: log, byCode: map[string]Client{}, byKey: map[TenantKey]Client{}}
	for _, c := range clients {
		p.add(c)
	}
	return p
}

// NewMemoryProviderFromFile seeds the provider from a YAML or JSON list of clients.
// An empty path yields an empty provider.
func NewMemoryProviderFromFile(log *zap.SugaredLogger, path string) (Provider, error) {
	clients, err := LoadClientsFile(path)
	if err != nil {
		return nil, err
	}
	log.Infow("tenant clients loaded", "count", len(clients), "file", path)
	return NewMemoryProvider(log, clients...), nil
}

// LoadClientsFile reads a list of clients. Format is picked by extension (.json, else YAML).
func LoadClientsFile(path string) ([]Client, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tenant clients: %w", err)
	}
	var doc struct {
		Clients []Client `json:"clients" yaml:"clients"`
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("json parse: %w", err)
		}
	} else if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("yaml parse: %w", err)
	}
	out := make([]Client, 0, len(doc.Clients))
	for i, c := range doc.Clients {
		if c.TenantCode == "" || c.ClientID == "" {
			return nil, fmt.Errorf("tenant client %d: tenant_code and client_id are required", i)
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memProvider) add(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.TenantCode != "" {
		m.byCode[c.TenantCode] = c
	}
	m.byKey[c.CacheKey()] = c
}

func (m *memProvider) ClientForTenant(ctx context.Context, tenantCode string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.byCode[tenantCode]; ok {
		return c, nil
	}
	return Client{}, ErrClientNotFound
}

func (m *memProvider) ClientByKey(ctx context.Context, key TenantKey) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.byKey[key]; ok {
		return c, nil
	}
	return Client{}, ErrClientNotFound
}
