package model_test

import (
	"testing"

	"github.com/FranksOps/foxeye/internal/embedder/model"
	_ "github.com/FranksOps/foxeye/internal/embedder/model/hashing"
)

func TestRegister_AndNew(t *testing.T) {
	m, err := model.New("hashing", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Config().HiddenSize <= 0 {
		t.Errorf("expected a positive hidden size")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := model.New("does-not-exist", nil)
	if err == nil {
		t.Fatalf("expected an error for an unregistered provider")
	}
}

func TestProviders_IncludesHashing(t *testing.T) {
	found := false
	for _, name := range model.Providers() {
		if name == "hashing" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected \"hashing\" to be a registered provider")
	}
}
