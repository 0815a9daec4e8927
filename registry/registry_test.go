package registry

import "testing"

func TestRegisterAndLookupExactRange(t *testing.T) {
	r, err := Open()
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer r.Close()

	err = r.Register("allreduce", []string{"dgx1", "dgx2"}, []SizeRange{{Lo: 0, Hi: 1024}}, "ring-small")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	plan, ok := r.Lookup("dgx1", "allreduce", 512)
	if !ok || plan != "ring-small" {
		t.Fatalf("Lookup(dgx1,allreduce,512) = (%q,%v), want (ring-small,true)", plan, ok)
	}
	if _, ok := r.Lookup("dgx3", "allreduce", 512); ok {
		t.Fatal("Lookup on an unregistered machine must report not-found")
	}
	if _, ok := r.Lookup("dgx1", "allreduce", 2048); ok {
		t.Fatal("Lookup outside the registered size range must report not-found")
	}
}

func TestUnboundedUpperRange(t *testing.T) {
	r, err := Open()
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer r.Close()

	if err := r.Register("alltoall", []string{"dgx1"}, []SizeRange{{Lo: 1024, Hi: 0}}, "ring-large"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	plan, ok := r.Lookup("dgx1", "alltoall", 1<<40)
	if !ok || plan != "ring-large" {
		t.Fatalf("Lookup with Hi=0 (unbounded) should match any size >= Lo, got (%q,%v)", plan, ok)
	}
	if _, ok := r.Lookup("dgx1", "alltoall", 1023); ok {
		t.Fatal("size below Lo must not match even an unbounded range")
	}
}

func TestRegisterMultipleMachinesAndSizes(t *testing.T) {
	r, err := Open()
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer r.Close()

	sizes := []SizeRange{{Lo: 0, Hi: 100}, {Lo: 100, Hi: 200}}
	if err := r.Register("pipeline", []string{"a", "b"}, sizes, "plan-x"); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	for _, m := range []string{"a", "b"} {
		for _, size := range []int64{50, 150} {
			if plan, ok := r.Lookup(m, "pipeline", size); !ok || plan != "plan-x" {
				t.Errorf("Lookup(%s,pipeline,%d) = (%q,%v), want (plan-x,true)", m, size, plan, ok)
			}
		}
	}
}
