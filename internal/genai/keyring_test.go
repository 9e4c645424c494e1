package genai_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/quietloop/remora/internal/genai"
)

func TestKeyRing_Empty(t *testing.T) {
	t.Parallel()

	_, err := genai.NewKeyRing(nil)
	if !errors.Is(err, genai.ErrNoCredentials) {
		t.Fatalf("NewKeyRing(nil): got %v, want ErrNoCredentials", err)
	}
}

func TestKeyRing_RotationSequence(t *testing.T) {
	t.Parallel()

	ring, err := genai.NewKeyRing([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("NewKeyRing: unexpected error: %v", err)
	}

	want := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, w := range want {
		if got := ring.Next(); got != w {
			t.Errorf("Next()[%d] = %q, want %q", i, got, w)
		}
	}
}

func TestKeyRing_NoImmediateRepeats(t *testing.T) {
	t.Parallel()

	ring, err := genai.NewKeyRing([]string{"k1", "k2"})
	if err != nil {
		t.Fatalf("NewKeyRing: unexpected error: %v", err)
	}

	prev := ring.Next()
	for i := 0; i < 20; i++ {
		cur := ring.Next()
		if cur == prev {
			t.Fatalf("Next() repeated %q at call %d", cur, i+1)
		}
		prev = cur
	}
}

func TestKeyRing_EvenDistributionUnderConcurrency(t *testing.T) {
	t.Parallel()

	keys := []string{"a", "b", "c"}
	ring, err := genai.NewKeyRing(keys)
	if err != nil {
		t.Fatalf("NewKeyRing: unexpected error: %v", err)
	}

	const calls = 300
	results := make(chan string, calls)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ring.Next()
		}()
	}
	wg.Wait()
	close(results)

	counts := make(map[string]int)
	for k := range results {
		counts[k]++
	}

	want := calls / len(keys)
	for _, k := range keys {
		if got := counts[k]; got < want-1 || got > want+1 {
			t.Errorf("key %q used %d times, want %d (±1)", k, got, want)
		}
	}
}

func TestKeyRing_Size(t *testing.T) {
	t.Parallel()

	ring, err := genai.NewKeyRing([]string{"only"})
	if err != nil {
		t.Fatalf("NewKeyRing: unexpected error: %v", err)
	}
	if ring.Size() != 1 {
		t.Errorf("Size = %d, want 1", ring.Size())
	}
	for i := 0; i < 3; i++ {
		if got := ring.Next(); got != "only" {
			t.Errorf("Next() = %q, want %q", got, "only")
		}
	}
}
