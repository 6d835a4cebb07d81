package config

import "testing"

func validConfig() *Config {
	cfg := Default()
	cfg.ServerAddress = "http://localhost:5244"
	cfg.RootPath = "/A"
	cfg.OutputDir = "/tmp/out"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing server", func(c *Config) { c.ServerAddress = "" }},
		{"missing root", func(c *Config) { c.RootPath = "" }},
		{"missing output", func(c *Config) { c.OutputDir = "" }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"zero rate limit", func(c *Config) { c.RPSLimit = 0 }},
		{"bad mode", func(c *Config) { c.Mode = "turbo" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefault_ExtensionSets(t *testing.T) {
	cfg := Default()
	if !cfg.IsStreamable("mkv") || !cfg.IsStreamable("mp3") {
		t.Error("stock streamable extensions missing")
	}
	if !cfg.IsMetadata("nfo") || !cfg.IsMetadata("srt") {
		t.Error("stock metadata extensions missing")
	}
	if cfg.IsStreamable("jpg") {
		t.Error("jpg is metadata, not streamable")
	}
	if cfg.IsMetadata("mkv") {
		t.Error("mkv is streamable, not metadata")
	}
	if _, ok := cfg.UntrustedProviders["BaiduNetdisk"]; !ok {
		t.Error("BaiduNetdisk should be on the stock denylist")
	}
}

func TestParseExtList(t *testing.T) {
	set := ParseExtList(".MKV, mp4,,  .Avi ")
	for _, want := range []string{"mkv", "mp4", "avi"} {
		if _, ok := set[want]; !ok {
			t.Errorf("missing %q in %v", want, set)
		}
	}
	if len(set) != 3 {
		t.Errorf("expected 3 entries, got %d: %v", len(set), set)
	}
}
