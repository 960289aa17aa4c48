package errkind

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatalClassification(t *testing.T) {
	fatalKinds := []Kind{Configuration, ExternalTool, Network, Unpack, Build, Filesystem}
	for _, k := range fatalKinds {
		if !k.Fatal() {
			t.Errorf("%s: expected fatal", k)
		}
	}
	soft := []Kind{Dependency, Hook}
	for _, k := range soft {
		if k.Fatal() {
			t.Errorf("%s: expected non-fatal", k)
		}
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(Network, nil) != nil {
		t.Errorf("expected nil passthrough")
	}
}

func TestOfUnwrapsChain(t *testing.T) {
	base := errors.New("connection refused")
	tagged := Wrap(Network, base)
	wrapped := fmt.Errorf("fetch hello-1.0: %w", tagged)

	kind, ok := Of(wrapped)
	if !ok || kind != Network {
		t.Errorf("Of() = %v, %v; want Network, true", kind, ok)
	}
}

func TestOfUntaggedError(t *testing.T) {
	_, ok := Of(errors.New("plain error"))
	if ok {
		t.Errorf("expected ok=false for untagged error")
	}
}
