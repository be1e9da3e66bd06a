package lazyinit

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestBuildsOnce(t *testing.T) {
	var calls atomic.Int32
	v := New(func() (int, error) {
		calls.Add(1)
		return 7, nil
	})

	if v.State() != Uninitialized {
		t.Fatalf("state = %s before first Get", v.State())
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := v.Get()
			if err != nil || got != 7 {
				t.Errorf("Get = %d, %v", got, err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("build ran %d times", calls.Load())
	}
	if v.State() != Ready {
		t.Fatalf("state = %s, want ready", v.State())
	}
}

func TestFailureIsTerminal(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	v := New(func() (string, error) {
		calls++
		return "", boom
	})

	for i := 0; i < 3; i++ {
		if _, err := v.Get(); !errors.Is(err, boom) {
			t.Fatalf("Get error = %v, want boom", err)
		}
	}
	if calls != 1 {
		t.Fatalf("build ran %d times", calls)
	}
	if v.State() != Failed {
		t.Fatalf("state = %s, want failed", v.State())
	}
}

func TestStateWhileBuilding(t *testing.T) {
	var v *Value[int]
	v = New(func() (int, error) {
		if v.State() != Building {
			t.Errorf("state inside build = %s", v.State())
		}
		return 1, nil
	})
	v.Get()
}
