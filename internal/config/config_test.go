package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{Pipeline: PipelineConfig{Symbol: "ethbtc", Depth: 20, DataLifetimeMS: 2000, Port: 10000}},
		},
		{
			name:    "missing symbol",
			cfg:     Config{Pipeline: PipelineConfig{Symbol: "", Depth: 20, Port: 10000}},
			wantErr: true,
		},
		{
			name:    "negative depth",
			cfg:     Config{Pipeline: PipelineConfig{Symbol: "ethbtc", Depth: -1, Port: 10000}},
			wantErr: true,
		},
		{
			name:    "negative data lifetime",
			cfg:     Config{Pipeline: PipelineConfig{Symbol: "ethbtc", Depth: 20, DataLifetimeMS: -1, Port: 10000}},
			wantErr: true,
		},
		{
			name:    "port out of range",
			cfg:     Config{Pipeline: PipelineConfig{Symbol: "ethbtc", Depth: 20, Port: 70000}},
			wantErr: true,
		},
		{
			name: "zero depth is allowed",
			cfg:  Config{Pipeline: PipelineConfig{Symbol: "ethbtc", Depth: 0, Port: 10000}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Pipeline.Symbol != "ethbtc" {
		t.Errorf("Symbol = %q, want ethbtc", cfg.Pipeline.Symbol)
	}
	if cfg.Pipeline.Depth != 20 {
		t.Errorf("Depth = %d, want 20", cfg.Pipeline.Depth)
	}
	if cfg.Pipeline.DataLifetimeMS != 2000 {
		t.Errorf("DataLifetimeMS = %d, want 2000", cfg.Pipeline.DataLifetimeMS)
	}
	if cfg.Pipeline.Port != 10000 {
		t.Errorf("Port = %d, want 10000", cfg.Pipeline.Port)
	}
}
