package config

// GetDefaultConfig returns the default Oatty runtime configuration.
func GetDefaultConfig() OattyConfig {
	return OattyConfig{
		Registry: RegistryConfig{
			Port:       8090,
			Host:       "localhost",
			Transport:  TransportStreamableHTTP,
			ToolPrefix: "x",
		},
	}
}
