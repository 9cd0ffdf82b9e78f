package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Patterns.PositivePath == "" {
		cfg.Patterns.PositivePath = "./config/positive_patterns.txt"
	}
	if cfg.Patterns.NegativePath == "" {
		cfg.Patterns.NegativePath = "./config/negative_patterns.txt"
	}
	if cfg.Match.Controls == 0 {
		cfg.Match.Controls = 7
	}
	if cfg.Match.MinSimilarity == 0 {
		cfg.Match.MinSimilarity = 0.2
	}
	if cfg.Match.MinAcceptable == 0 {
		cfg.Match.MinAcceptable = 5
	}
	if cfg.Match.Workers == 0 {
		cfg.Match.Workers = 6
	}
	if cfg.Match.MaxPosts == 0 {
		cfg.Match.MaxPosts = 100
	}
	if cfg.Fetch.PageSize == 0 {
		cfg.Fetch.PageSize = 200
	}
	if cfg.Fetch.RequestsPerSecond == 0 {
		cfg.Fetch.RequestsPerSecond = 1
	}
	if cfg.Fetch.Burst == 0 {
		cfg.Fetch.Burst = 1
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 3
	}
	if cfg.Storage.CachePath == "" {
		cfg.Storage.CachePath = "./timeline_cache.db"
	}
}
