package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("unexpected default port %q", cfg.Port)
	}
	if cfg.AgentModel == "" {
		t.Error("expected a default agent model")
	}
	if !cfg.IsDevelopment() {
		t.Error("empty FRONTEND_URL should mean development mode")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("FRONTEND_URL", "https://app.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("PORT override ignored, got %q", cfg.Port)
	}
	if cfg.IsDevelopment() {
		t.Error("non-localhost FRONTEND_URL should not be development mode")
	}

	t.Setenv("FRONTEND_URL", "http://localhost:3000")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.IsDevelopment() {
		t.Error("localhost FRONTEND_URL should be development mode")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{Port: "8080", DBPath: "db", DataDir: "data", AppName: "app", AgentModel: "m"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for name, mutate := range map[string]func(*Config){
		"port":     func(c *Config) { c.Port = "" },
		"db path":  func(c *Config) { c.DBPath = "" },
		"data dir": func(c *Config) { c.DataDir = "" },
		"app name": func(c *Config) { c.AppName = "" },
		"model":    func(c *Config) { c.AgentModel = "" },
	} {
		bad := *cfg
		mutate(&bad)
		if err := bad.Validate(); err == nil {
			t.Errorf("missing %s should fail validation", name)
		}
	}
}
