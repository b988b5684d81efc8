package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFileRejectsUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, _ := json.Marshal(map[string]interface{}{"batch_size": 10, "not_a_real_key": true})
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body, _ := json.Marshal(map[string]interface{}{"batch_size": 77})
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BatchSize != 77 {
		t.Fatalf("expected overlaid batch_size 77, got %d", cfg.BatchSize)
	}
	if cfg.ChunkSize != Default().ChunkSize {
		t.Fatalf("expected untouched fields to keep defaults")
	}
}

func TestLoadFileEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatal("expected empty path to return Default()")
	}
}

func TestValidateRejectsBadChunkOverlap(t *testing.T) {
	cfg := Default()
	cfg.ChunkOverlap = cfg.ChunkSize
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected chunk_overlap >= chunk_size to fail validation")
	}
}

func TestValidateRejectsBadChecksumAlgorithm(t *testing.T) {
	cfg := Default()
	cfg.ChecksumAlgorithm = "sha-1"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported checksum_algorithm to fail validation")
	}
}

func TestSnapshotCopiesSlices(t *testing.T) {
	cfg := Default()
	cfg.WebURLs = []string{"https://example.com"}
	snap := cfg.Snapshot()
	snap.WebURLs[0] = "mutated"
	if cfg.WebURLs[0] == "mutated" {
		t.Fatal("snapshot should not alias the original slice")
	}
}
