package vm

import (
	"cheviot-kernel-sub001/defs"
	"cheviot-kernel-sub001/mem"
	"testing"
)

func newTestPmap(t *testing.T) (*Pmap, *mem.Physmem_t) {
	t.Helper()
	phys := mem.NewPhysmem_tForTest()
	p, err := PmapCreate(nil, phys)
	if err != 0 {
		t.Fatalf("PmapCreate: %v", err)
	}
	return p, phys
}

func TestEnterLookup(t *testing.T) {
	p, phys := newTestPmap(t)
	_, pa, ok := phys.RefpgNew()
	if !ok {
		t.Fatal("RefpgNew failed")
	}
	if err := p.Enter(0x1000, pa, ProtRead, 0); err != 0 {
		t.Fatalf("Enter: %v", err)
	}
	got, prot, ok := p.Lookup(0x1000)
	if !ok || got != pa || prot != ProtRead {
		t.Fatalf("Lookup mismatch: got=%#x prot=%v ok=%v", got, prot, ok)
	}
}

func TestEnterConflictWithoutReplace(t *testing.T) {
	p, phys := newTestPmap(t)
	_, pa1, _ := phys.RefpgNew()
	_, pa2, _ := phys.RefpgNew()
	if err := p.Enter(0x2000, pa1, ProtRead, 0); err != 0 {
		t.Fatalf("first Enter: %v", err)
	}
	if err := p.Enter(0x2000, pa2, ProtRead, 0); err != -defs.EEXIST {
		t.Fatalf("expected EEXIST, got %v", err)
	}
	if err := p.Enter(0x2000, pa2, ProtRead, MapReplace); err != 0 {
		t.Fatalf("replace Enter: %v", err)
	}
}

func TestAnonFault(t *testing.T) {
	p, _ := newTestPmap(t)
	p.EnterAnon(0x3000, ProtRead|ProtWrite)
	if err := p.Fault(0x3000, FaultNotPresent); err != 0 {
		t.Fatalf("Fault: %v", err)
	}
	if _, _, ok := p.Lookup(0x3000); !ok {
		t.Fatal("expected mapping to exist after fault")
	}
}

func TestFaultWithNoBackingIsSegv(t *testing.T) {
	p, _ := newTestPmap(t)
	if err := p.Fault(0x4000, FaultNotPresent); err != -defs.EFAULT {
		t.Fatalf("expected EFAULT, got %v", err)
	}
}

func TestRemoveDropsReverseEntry(t *testing.T) {
	p, phys := newTestPmap(t)
	_, pa, _ := phys.RefpgNew()
	p.Enter(0x5000, pa, ProtRead, 0)
	p.Remove(0x5000, mem.PGSIZE)
	if _, _, ok := p.Lookup(0x5000); ok {
		t.Fatal("expected mapping removed")
	}
}
