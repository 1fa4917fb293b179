package main

import (
	"testing"

	"github.com/hyperifyio/toolgate/internal/config"
)

func defaultConfigForTest(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}
