package config

import "testing"

func TestValidateWorker(t *testing.T) {
	cfg := App{QueueBackend: "redis"}
	if err := cfg.ValidateWorker(); err != nil {
		t.Fatalf("redis backend rejected: %v", err)
	}

	cfg.QueueBackend = "memory"
	if err := cfg.ValidateWorker(); err == nil {
		t.Fatal("memory backend accepted for a standalone worker")
	}
}
