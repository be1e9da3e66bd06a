package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Errorf(KindInvalidInput, "payload is %d bytes", 10)

	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected %v to match ErrInvalidInput", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("did not expect %v to match ErrNotFound", err)
	}

	wrapped := fmt.Errorf("patching file 3: %w", err)
	if !errors.Is(wrapped, ErrInvalidInput) {
		t.Fatalf("expected wrapped error to match ErrInvalidInput")
	}
	if got := KindOf(wrapped); got != KindInvalidInput {
		t.Fatalf("KindOf = %s, want %s", got, KindInvalidInput)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("read failed")
	err := Wrap(KindMemoryAccess, cause, "reading node at %x", 0x1000)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if want := "MemoryAccess: reading node at 1000: read failed"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf = %s, want %s", got, KindInternal)
	}
	if FromError(nil) != nil {
		t.Fatalf("FromError(nil) should be nil")
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{Results: []FileResult{
		{Index: 0, ID: 42},
		{Index: 1, Error: Errorf(KindInstanceMissing, "CSSfx is null")},
	}}

	decoded, err := DecodeResponse(EncodeResponse(resp))
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !decoded.Failed() {
		t.Fatalf("expected decoded response to report failure")
	}
	if !errors.Is(decoded.Err(), ErrInstanceMissing) {
		t.Fatalf("Err() = %v, want InstanceMissing", decoded.Err())
	}
	if decoded.Results[0].ID != 42 || decoded.Results[0].Error != nil {
		t.Fatalf("unexpected first result %+v", decoded.Results[0])
	}
}

func TestDecodeRequestRejectsGarbage(t *testing.T) {
	_, err := DecodeRequest([]byte("{not json"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("DecodeRequest error = %v, want InvalidInput", err)
	}
}
