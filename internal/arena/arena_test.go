package arena

import (
	"testing"

	muderr "sockmud/internal/errors"
)

type item struct {
	name string
	refs []int
}

func resetItem(it *item) { *it = item{} }

func TestArena_AllocGetFree(t *testing.T) {
	a := New[item](0, resetItem)

	h, it, err := a.Alloc()
	if err != nil {
		t.Fatal(err)
	}
	it.name = "Rin"

	got, ok := a.Get(h)
	if !ok || got.name != "Rin" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if got != it {
		t.Error("Get should return the same pointer as Alloc")
	}

	if !a.Free(h) {
		t.Fatal("Free returned false for a live handle")
	}
	if _, ok := a.Get(h); ok {
		t.Error("freed handle still resolves")
	}
	if a.Free(h) {
		t.Error("double free should report false")
	}
}

func TestArena_ZeroHandle(t *testing.T) {
	a := New[item](0, nil)
	var h Handle
	if !h.IsZero() {
		t.Fatal("zero Handle should report IsZero")
	}
	if _, ok := a.Get(h); ok {
		t.Error("zero Handle should never resolve")
	}
	if a.Free(h) {
		t.Error("freeing the zero Handle should be a no-op")
	}
	if h.String() != "#-" {
		t.Errorf("String() = %q", h.String())
	}
}

func TestArena_ResetOnReuse(t *testing.T) {
	a := New[item](0, resetItem)

	h, it, _ := a.Alloc()
	it.name = "stale"
	it.refs = []int{1, 2, 3}
	a.Free(h)

	h2, it2, _ := a.Alloc()
	if h2 == h {
		t.Error("reused slot must carry a new generation")
	}
	if it2.name != "" || it2.refs != nil {
		t.Errorf("reused object not reset: %+v", it2)
	}
	if _, ok := a.Get(h); ok {
		t.Error("stale handle resolves after reuse")
	}
}

func TestArena_ResetOnFirstAlloc(t *testing.T) {
	a := New[item](0, func(it *item) { *it = item{name: "guest"} })

	for i := 0; i < 3; i++ {
		_, it, err := a.Alloc()
		if err != nil {
			t.Fatal(err)
		}
		if it.name != "guest" {
			t.Errorf("alloc %d: name = %q, want the reset value", i, it.name)
		}
	}
}

func TestArena_LivePlusPooledConstant(t *testing.T) {
	a := New[item](0, resetItem)

	var hs []Handle
	for i := 0; i < 4; i++ {
		h, _, _ := a.Alloc()
		hs = append(hs, h)
	}
	total := a.Cap()

	check := func(step string) {
		t.Helper()
		if a.Len()+a.Pooled() != total {
			t.Fatalf("%s: live %d + pooled %d != %d", step, a.Len(), a.Pooled(), total)
		}
	}

	check("after alloc")
	a.Free(hs[1])
	a.Free(hs[3])
	check("after free")
	h, _, _ := a.Alloc()
	check("after reuse")
	a.Free(h)
	a.Free(hs[0])
	a.Free(hs[2])
	check("after free all")
	if a.Len() != 0 || a.Pooled() != total {
		t.Errorf("live=%d pooled=%d", a.Len(), a.Pooled())
	}
}

func TestArena_Limit(t *testing.T) {
	a := New[item](2, resetItem)

	h1, _, _ := a.Alloc()
	if _, _, err := a.Alloc(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.Alloc(); !muderr.Is(err, muderr.ErrPoolExhausted) {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}

	a.Free(h1)
	if _, _, err := a.Alloc(); err != nil {
		t.Fatalf("alloc after free should reuse the slot: %v", err)
	}
}

func TestArena_EachAndHandles(t *testing.T) {
	a := New[item](0, resetItem)
	names := []string{"Ada", "Bo", "Cy"}
	var hs []Handle
	for _, n := range names {
		h, it, _ := a.Alloc()
		it.name = n
		hs = append(hs, h)
	}
	a.Free(hs[1])

	var seen []string
	a.Each(func(_ Handle, it *item) bool {
		seen = append(seen, it.name)
		return true
	})
	if len(seen) != 2 || seen[0] != "Ada" || seen[1] != "Cy" {
		t.Errorf("Each saw %v", seen)
	}

	got := a.Handles()
	if len(got) != 2 || got[0] != hs[0] || got[1] != hs[2] {
		t.Errorf("Handles() = %v", got)
	}

	count := 0
	a.Each(func(Handle, *item) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Each should stop when fn returns false, visited %d", count)
	}
}
