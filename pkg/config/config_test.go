package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("MECHI_TEST_PATH", "/data/mechi.db")
	file := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(file, []byte("port: 9090\npath: ${MECHI_TEST_PATH}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := Load(file, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Port != 9090 || s.Path != "/data/mechi.db" {
		t.Errorf("loaded %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	file := filepath.Join(t.TempDir(), "c.yaml")
	_ = os.WriteFile(file, []byte("port: 0\n"), 0o644)
	var s sample
	if err := Load(file, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOptional_MissingKeepsDefaults(t *testing.T) {
	s := sample{Port: 8080}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"), &s)
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if s.Port != 8080 {
		t.Errorf("defaults lost: %+v", s)
	}
}
