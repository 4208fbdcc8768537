package tasklib

import (
	"sync"
	"testing"
)

func TestVMapBasics(t *testing.T) {
	vm := NewVMap[string, int]()
	if vm.Len() != 0 {
		t.Fatal("new map should be empty")
	}
	vm.Set("a", 1)
	vm.Set("b", 2)
	vm.Set("a", 3)

	if got := vm.Get("a"); got != 3 {
		t.Errorf("Get(a) = %d, want 3", got)
	}
	if got := vm.Get("missing"); got != 0 {
		t.Errorf("Get(missing) = %d, want zero value", got)
	}
	if _, ok := vm.GetOK("missing"); ok {
		t.Error("GetOK(missing) reported present")
	}
	if !vm.Has("b") {
		t.Error("Has(b) = false")
	}
	if vm.Len() != 2 {
		t.Errorf("Len = %d, want 2", vm.Len())
	}
	if keys := vm.Keys(); len(keys) != 2 {
		t.Errorf("Keys = %v", keys)
	}

	vm.Delete("a")
	vm.Delete("never-there")
	if vm.Has("a") || vm.Len() != 1 {
		t.Error("Delete did not remove the key")
	}
}

func TestVMapRangeEarlyStop(t *testing.T) {
	vm := NewVMap[int, int]()
	for i := 0; i < 10; i++ {
		vm.Set(i, i)
	}
	seen := 0
	vm.Range(func(int, int) bool {
		seen++
		return seen < 3
	})
	if seen != 3 {
		t.Errorf("Range visited %d entries, want 3", seen)
	}
}

// Concurrent readers and writers; fails under -race if locking is wrong.
func TestVMapConcurrentAccess(t *testing.T) {
	vm := NewVMap[int, string]()
	var wg sync.WaitGroup

	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				vm.Set(id*100+i, "value")
			}
		}(w)
	}
	for r := 0; r < 5; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				vm.Len()
				vm.Keys()
				vm.Has(i)
			}
		}()
	}
	wg.Wait()

	if vm.Len() != 1000 {
		t.Errorf("Len = %d, want 1000", vm.Len())
	}
}
