package config

import (
	"errors"
	"testing"

	sttmock "github.com/voxlate/voxlate/pkg/provider/stt/mock"
	translatemock "github.com/voxlate/voxlate/pkg/provider/translate/mock"
	ttsmock "github.com/voxlate/voxlate/pkg/provider/tts/mock"

	"github.com/voxlate/voxlate/pkg/provider/stt"
	"github.com/voxlate/voxlate/pkg/provider/translate"
	"github.com/voxlate/voxlate/pkg/provider/tts"
)

func TestRegistryCreateUsesRegisteredFactory(t *testing.T) {
	r := NewRegistry()

	var gotEntry ProviderEntry
	r.RegisterSTT("mock", func(e ProviderEntry) (stt.Provider, error) {
		gotEntry = e
		return &sttmock.Provider{}, nil
	})
	r.RegisterTranslate("mock", func(ProviderEntry) (translate.Provider, error) {
		return &translatemock.Provider{}, nil
	})
	r.RegisterTTS("mock", func(ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	entry := ProviderEntry{Name: "mock", APIKey: "key", Model: "whisper-1"}
	p, err := r.CreateSTT(entry)
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}
	if gotEntry.APIKey != "key" || gotEntry.Model != "whisper-1" {
		t.Errorf("factory received entry %+v", gotEntry)
	}

	if _, err := r.CreateTranslate(ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateTranslate: %v", err)
	}
	if _, err := r.CreateTTS(ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
}

func TestRegistryUnregisteredName(t *testing.T) {
	r := NewRegistry()

	_, err := r.CreateSTT(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
	_, err = r.CreateAudio(ProviderEntry{Name: "nope"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	r := NewRegistry()

	first := &sttmock.Provider{}
	second := &sttmock.Provider{}
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Provider, error) { return first, nil })
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Provider, error) { return second, nil })

	p, err := r.CreateSTT(ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p != second {
		t.Error("later registration did not overwrite earlier one")
	}
}
