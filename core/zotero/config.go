package zotero

// Config holds configuration for the Zotero Web API client.
type Config struct {
	// BaseURL is the root of the Web API.
	BaseURL string `mapstructure:"base_url" default:"https://api.zotero.org"`
	// APIKey is the default key used by CLI commands when none is supplied.
	APIKey string `mapstructure:"api_key" default:""`
	// Library is the default library path (e.g. users/111) used by CLI commands.
	Library string `mapstructure:"library" default:""`
	// TimeoutSeconds bounds connection setup and the wait for response headers.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
