package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Crawler.Delay != time.Second {
		t.Errorf("default delay = %v, want 1s", cfg.Crawler.Delay)
	}
	if cfg.Crawler.Timeout != 10*time.Second {
		t.Errorf("default timeout = %v, want 10s", cfg.Crawler.Timeout)
	}
	if cfg.Selectors.Item == "" {
		t.Error("default item selector must be set")
	}
	if cfg.Selectors.RatingWords["Five"] != 5 {
		t.Errorf("default rating words missing Five: %v", cfg.Selectors.RatingWords)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if cfg.Crawler.BaseURL == "" {
		t.Fatal("loaded config missing base URL")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("Load with missing file must fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "empty base url", mutate: func(c *Config) { c.Crawler.BaseURL = "" }, wantErr: true},
		{name: "base url without host", mutate: func(c *Config) { c.Crawler.BaseURL = "/relative/path" }, wantErr: true},
		{name: "zero max pages", mutate: func(c *Config) { c.Crawler.MaxPages = 0 }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Crawler.Delay = -time.Second }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Crawler.Timeout = 0 }, wantErr: true},
		{name: "empty user agent", mutate: func(c *Config) { c.Crawler.UserAgent = "" }, wantErr: true},
		{name: "zero visited cache", mutate: func(c *Config) { c.Crawler.VisitedCacheSize = 0 }, wantErr: true},
		{name: "empty item selector", mutate: func(c *Config) { c.Selectors.Item = "" }, wantErr: true},
		{name: "empty next link selector", mutate: func(c *Config) { c.Selectors.NextLink = "" }, wantErr: true},
		{name: "empty in-stock phrase", mutate: func(c *Config) { c.Selectors.InStockPhrase = "" }, wantErr: true},
		{name: "empty output file", mutate: func(c *Config) { c.Output.File = "" }, wantErr: true},
		{name: "bad output format", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: true},
		{name: "empty server addr", mutate: func(c *Config) { c.Server.Addr = "" }, wantErr: true},
		{name: "empty data file", mutate: func(c *Config) { c.Server.DataFile = "" }, wantErr: true},
		{name: "zero request timeout", mutate: func(c *Config) { c.Server.RequestTimeout = 0 }, wantErr: true},
		{name: "auth without users", mutate: func(c *Config) { c.Server.Users = nil }, wantErr: true},
		{name: "auth disabled without users", mutate: func(c *Config) {
			c.Server.AuthEnabled = false
			c.Server.Users = nil
		}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
