package domain

// Config mirrors ~/.dexplorer/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version" koanf:"config_format_version"`
	Backend             BackendSettings   `yaml:"backend" koanf:"backend"`
	History             HistorySettings   `yaml:"history" koanf:"history"`
	Display             DisplaySettings   `yaml:"display" koanf:"display"`
	Guardrail           GuardrailSettings `yaml:"guardrail" koanf:"guardrail"`
}

// BackendSettings locates the execution API.
type BackendSettings struct {
	URL            string `yaml:"url" koanf:"url"`
	Database       string `yaml:"database" koanf:"database"`
	UsernameEnvVar string `yaml:"username_env" koanf:"username_env"`
	PasswordEnvVar string `yaml:"password_env" koanf:"password_env"`
	TimeoutSeconds int    `yaml:"timeout" koanf:"timeout"`
}

// HistorySettings controls the execution history database.
type HistorySettings struct {
	Enabled       bool   `yaml:"enabled" koanf:"enabled"`
	Path          string `yaml:"path" koanf:"path"`
	RetentionDays int    `yaml:"retention_days" koanf:"retention_days"`
}

// DisplaySettings holds rendering preferences.
type DisplaySettings struct {
	Format        string `yaml:"format" koanf:"format"`
	NotifySeconds int    `yaml:"notify_seconds" koanf:"notify_seconds"`
	Color         bool   `yaml:"color" koanf:"color"`
}

// GuardrailSettings controls confirmation of destructive SQL.
type GuardrailSettings struct {
	Enabled   bool   `yaml:"enabled" koanf:"enabled"`
	RulesPath string `yaml:"rules_path" koanf:"rules_path"`
}
