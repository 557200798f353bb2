package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRACKFUSION_ENV", "testing")
	t.Setenv("DATABASE_DSN", "postgres://localhost:5432/trackfusion_test?sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected default listen addr :8080, got %s", cfg.ListenAddr)
	}
	if cfg.SearchWorkers != 4 {
		t.Errorf("expected default search workers 4, got %d", cfg.SearchWorkers)
	}
	if cfg.FaceQualityMin != 0.6 {
		t.Errorf("expected default face quality min 0.6, got %f", cfg.FaceQualityMin)
	}
	if cfg.WLAlarm {
		t.Error("expected default alarm mode to be black-list (WLAlarm=false)")
	}
	if !cfg.IsTesting() {
		t.Error("expected IsTesting to report true for TRACKFUSION_ENV=testing")
	}
}

func TestValidateRequiresDatabaseDSN(t *testing.T) {
	cfg := &Config{SearchWorkers: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing DATABASE_DSN")
	}
}

func TestValidateRequiresSearchWorkers(t *testing.T) {
	cfg := &Config{DatabaseDSN: "postgres://x", SearchWorkers: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for SEARCH_WORKERS < 1")
	}
}

func TestValidateEnrollRequiresLibraryUnlessTestMode(t *testing.T) {
	cfg := &Config{EnrollDir: "./data", EnrollTestMode: false}
	if err := cfg.ValidateEnroll(); err == nil {
		t.Fatal("expected error for missing ENROLL_LIBRARY_ID")
	}

	cfg.EnrollTestMode = true
	if err := cfg.ValidateEnroll(); err != nil {
		t.Fatalf("test mode should not require a library id: %v", err)
	}
}

func TestGetListEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("ENROLL_EXTENSIONS_TEST", "")
	got := getListEnv("ENROLL_EXTENSIONS_TEST", []string{".jpg"})
	if len(got) != 1 || got[0] != ".jpg" {
		t.Errorf("expected fallback default, got %v", got)
	}
}

func TestGetListEnvSplitsAndTrims(t *testing.T) {
	t.Setenv("ENROLL_EXTENSIONS_TEST", ".jpg, .png ,.bmp")
	got := getListEnv("ENROLL_EXTENSIONS_TEST", nil)
	want := []string{".jpg", ".png", ".bmp"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
