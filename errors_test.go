package pipedb

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesByKindOnly(t *testing.T) {
	e1 := wrap("open", KindCorruptOrEmpty, errors.New("boom"))
	e2 := wrap("stream", KindCorruptOrEmpty, nil)
	if !errors.Is(e1, e2) {
		t.Errorf("errors with the same Kind and different Op/Cause should match via Is")
	}
	if errors.Is(e1, ErrIO) {
		t.Errorf("errors with different Kind should not match via Is")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	e := wrap("open", KindIO, cause)
	if !errors.Is(e, cause) {
		t.Errorf("Unwrap should expose the underlying cause to errors.Is")
	}
}

func TestErrorSentinels(t *testing.T) {
	err := wrap("x", KindBusy, nil)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("wrap(KindBusy) should match ErrBusy sentinel")
	}
}
