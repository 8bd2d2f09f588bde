package plugin

import (
	"fmt"
	"strings"

	"oatty/internal/api"
)

// resolveHeaders expands "${secret:NAME}" placeholders in a transport's
// header values against the secret store collaborator. An unresolved
// placeholder is left as-is; the transport will simply fail auth upstream,
// which is surfaced through the plugin's normal health/error path.
func resolveHeaders(headers map[string]string, secrets api.SecretStore) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	resolved := make(map[string]string, len(headers))
	for k, v := range headers {
		resolved[k] = resolveSecretPlaceholder(v, secrets)
	}
	return resolved
}

func resolveSecretPlaceholder(value string, secrets api.SecretStore) string {
	const prefix, suffix = "${secret:", "}"
	if secrets == nil || !strings.HasPrefix(value, prefix) || !strings.HasSuffix(value, suffix) {
		return value
	}
	name := strings.TrimSuffix(strings.TrimPrefix(value, prefix), suffix)
	if secret, ok := secrets.Lookup(name); ok {
		return secret.Value
	}
	return value
}

// NewMCPClientFromTransport builds the MCPClient implementation matching a
// plugin's configured transport. Stdio transports spawn a local subprocess;
// HTTP transports dial a remote server, using streamable-http unless an
// SSEPath is set.
func NewMCPClientFromTransport(t api.PluginTransport, secrets api.SecretStore) (MCPClient, error) {
	switch t.Kind {
	case api.TransportStdio:
		if t.Stdio == nil || t.Stdio.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		return NewStdioClientWithEnv(t.Stdio.Command, t.Stdio.Args, t.Stdio.Env), nil

	case api.TransportHTTP:
		if t.HTTP == nil || t.HTTP.BaseURL == "" {
			return nil, fmt.Errorf("baseUrl is required for http transport")
		}
		headers := resolveHeaders(t.HTTP.Headers, secrets)
		if t.HTTP.SSEPath != "" {
			return NewSSEClientWithHeaders(t.HTTP.BaseURL+t.HTTP.SSEPath, headers), nil
		}
		return NewStreamableHTTPClientWithHeaders(t.HTTP.BaseURL, headers), nil

	default:
		return nil, fmt.Errorf("unsupported plugin transport kind: %s", t.Kind)
	}
}
