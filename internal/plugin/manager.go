package plugin

import (
	"fmt"
	"path/filepath"
	"sync"

	"oatty/internal/api"
	"oatty/internal/config"
	"oatty/pkg/logging"

	"gopkg.in/yaml.v3"
)

// DefinitionManager loads and persists plugin descriptors, following the
// same load/validate/store pattern used across oatty's other definition
// managers.
type DefinitionManager struct {
	mu          sync.RWMutex
	definitions map[string]*api.PluginDescriptor
	storage     *config.Storage
	configPath  string
}

// NewDefinitionManager creates a plugin descriptor manager backed by storage.
func NewDefinitionManager(storage *config.Storage) (*DefinitionManager, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	return &DefinitionManager{
		definitions: make(map[string]*api.PluginDescriptor),
		storage:     storage,
	}, nil
}

// SetConfigPath redirects definition discovery to an explicit directory,
// used primarily by tests.
func (m *DefinitionManager) SetConfigPath(configPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configPath = configPath
}

func (m *DefinitionManager) validate(def *api.PluginDescriptor) error {
	var errs config.ValidationErrors
	if err := config.ValidateEntityName(def.ID, "plugin"); err != nil {
		errs = append(errs, err.(config.ValidationError))
	}
	switch def.Transport.Kind {
	case api.TransportStdio:
		if def.Transport.Stdio == nil || def.Transport.Stdio.Command == "" {
			errs.Add("transport.stdio.command", "is required for stdio transport")
		}
	case api.TransportHTTP:
		if def.Transport.HTTP == nil || def.Transport.HTTP.BaseURL == "" {
			errs.Add("transport.http.baseUrl", "is required for http transport")
		}
	default:
		errs.Add("transport.kind", fmt.Sprintf("must be %q or %q", api.TransportStdio, api.TransportHTTP))
	}
	if errs.HasErrors() {
		return config.FormatValidationError("plugin", def.ID, errs)
	}
	return nil
}

// LoadDefinitions (re)loads every plugin descriptor from YAML files, project
// definitions overriding user definitions sharing an ID.
func (m *DefinitionManager) LoadDefinitions() error {
	validator := func(def api.PluginDescriptor) error { return m.validate(&def) }

	definitions, errs, err := config.LoadAndParseYAMLWithConfig(m.configPath, "plugins", validator)
	if err != nil {
		return fmt.Errorf("loading plugin definitions: %w", err)
	}
	if errs.HasErrors() {
		logging.Warn("PluginManager", "some plugin files had errors:\n%s", errs.GetSummary())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions = make(map[string]*api.PluginDescriptor, len(definitions))
	for i := range definitions {
		def := definitions[i]
		m.definitions[def.ID] = &def
	}
	logging.Info("PluginManager", "loaded %d plugin definitions", len(definitions))
	return nil
}

// GetDefinition returns a plugin descriptor by ID.
func (m *DefinitionManager) GetDefinition(id string) (api.PluginDescriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.definitions[id]
	if !ok {
		return api.PluginDescriptor{}, false
	}
	return *def, true
}

// ListDefinitions returns every loaded plugin descriptor.
func (m *DefinitionManager) ListDefinitions() []api.PluginDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]api.PluginDescriptor, 0, len(m.definitions))
	for _, def := range m.definitions {
		out = append(out, *def)
	}
	return out
}

// GetDefinitionsPath describes where plugin descriptors are discovered from.
func (m *DefinitionManager) GetDefinitionsPath() string {
	userDir, projectDir, err := config.GetConfigurationPaths()
	if err != nil {
		return "error determining paths"
	}
	return fmt.Sprintf("User: %s, Project: %s",
		filepath.Join(userDir, "plugins"), filepath.Join(projectDir, "plugins"))
}

// CreateDefinition validates, persists, and registers a new plugin descriptor.
func (m *DefinitionManager) CreateDefinition(def api.PluginDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.definitions[def.ID]; exists {
		return fmt.Errorf("plugin %q already exists", def.ID)
	}
	if err := m.validate(&def); err != nil {
		return err
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshaling plugin %s: %w", def.ID, err)
	}
	if err := m.storage.Save("plugins", def.ID, data); err != nil {
		return fmt.Errorf("saving plugin %s: %w", def.ID, err)
	}
	m.definitions[def.ID] = &def
	return nil
}

// DeleteDefinition removes a plugin descriptor from storage and memory.
func (m *DefinitionManager) DeleteDefinition(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.definitions[id]; !exists {
		return api.NewPluginNotFoundError(id)
	}
	if err := m.storage.Delete("plugins", id); err != nil {
		return fmt.Errorf("deleting plugin %s: %w", id, err)
	}
	delete(m.definitions, id)
	return nil
}
