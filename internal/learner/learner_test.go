package learner

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tpg/internal/instruction"
	"tpg/internal/model"
	"tpg/internal/vm"
)

func TestNewAllocatesSequentialIDsAndBoundedPrograms(t *testing.T) {
	ids := NewIDAllocator(10)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		l, err := New(ids, rng, model.AtomicAction(1), 5, 2)
		if err != nil {
			t.Fatalf("new learner: %v", err)
		}
		if l.ID != int64(10+i) {
			t.Fatalf("expected id %d, got %d", 10+i, l.ID)
		}
		if n := len(l.Program); n < 1 || n > 5 {
			t.Fatalf("program length %d outside [1,5]", n)
		}
		if l.BirthGeneration != 2 || l.TeamRefCount != 0 {
			t.Fatalf("unexpected bookkeeping: %+v", l)
		}
	}
}

func TestNewCoversEveryProgramLength(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		l, err := New(NewIDAllocator(0), rng, model.AtomicAction(0), 4, 0)
		if err != nil {
			t.Fatalf("new learner: %v", err)
		}
		seen[len(l.Program)] = true
	}
	for n := 1; n <= 4; n++ {
		if !seen[n] {
			t.Fatalf("program length %d never generated", n)
		}
	}
}

func TestNewIsDeterministicForSeed(t *testing.T) {
	a, err := New(NewIDAllocator(0), rand.New(rand.NewSource(77)), model.AtomicAction(0), 8, 0)
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	b, err := New(NewIDAllocator(0), rand.New(rand.NewSource(77)), model.AtomicAction(0), 8, 0)
	if err != nil {
		t.Fatalf("new b: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("same seed produced different learners (-a +b):\n%s", diff)
	}
}

func TestNewRejectsInvalidProgramSize(t *testing.T) {
	if _, err := New(nil, nil, model.AtomicAction(0), 0, 0); !errors.Is(err, ErrInvalidProgramSize) {
		t.Fatalf("expected ErrInvalidProgramSize, got %v", err)
	}
}

func TestNewWithProgramValidatesLength(t *testing.T) {
	ids := NewIDAllocator(0)
	if _, err := NewWithProgram(ids, model.AtomicAction(0), nil, 4, 0); err == nil {
		t.Fatal("expected empty program to be rejected")
	}
	program := make([]instruction.Instruction, 5)
	if _, err := NewWithProgram(ids, model.AtomicAction(0), program, 4, 0); err == nil {
		t.Fatal("expected oversize program to be rejected")
	}
	l, err := NewWithProgram(ids, model.AtomicAction(0), program[:2], 4, 0)
	if err != nil {
		t.Fatalf("new with program: %v", err)
	}
	program[0] = 1
	if l.Program[0] != 0 {
		t.Fatal("learner aliases the caller's program")
	}
}

func TestCloneInPlacePreservesIdentityAndCopiesProgram(t *testing.T) {
	ids := NewIDAllocator(0)
	src, err := New(ids, rand.New(rand.NewSource(5)), model.TeamAction("t7"), 8, 3)
	if err != nil {
		t.Fatalf("new learner: %v", err)
	}
	src.TeamRefCount = 4
	before := ids.Peek()

	clone := Clone(ids, src, false, 99)
	if clone.ID != src.ID || clone.BirthGeneration != 3 || clone.TeamRefCount != 4 {
		t.Fatalf("in-place clone lost identity: %+v", clone)
	}
	if ids.Peek() != before {
		t.Fatal("in-place clone must not allocate an id")
	}
	if diff := cmp.Diff(src.Program, clone.Program); diff != "" {
		t.Fatalf("program differs (-src +clone):\n%s", diff)
	}
	if !clone.Action.Equal(src.Action) {
		t.Fatalf("action not copied: %s", clone.Action)
	}

	original := src.Program[0]
	if err := clone.Program[0].Flip(0); err != nil {
		t.Fatalf("flip: %v", err)
	}
	clone.Program = append(clone.Program, 0)
	if src.Program[0] != original || len(src.Program) == len(clone.Program) {
		t.Fatal("mutating the clone changed the source program")
	}
}

func TestCloneAsNewStartsNewLineage(t *testing.T) {
	ids := NewIDAllocator(0)
	src, err := New(ids, rand.New(rand.NewSource(5)), model.AtomicAction(2), 8, 1)
	if err != nil {
		t.Fatalf("new learner: %v", err)
	}
	src.TeamRefCount = 3

	clone := Clone(ids, src, true, 5)
	if clone.ID == src.ID {
		t.Fatal("expected a new id")
	}
	if clone.BirthGeneration != 5 || clone.TeamRefCount != 0 {
		t.Fatalf("unexpected lineage fields: %+v", clone)
	}
	if diff := cmp.Diff(src.Program, clone.Program); diff != "" {
		t.Fatalf("program differs (-src +clone):\n%s", diff)
	}
}

func TestIDAllocatorIsUniqueUnderConcurrency(t *testing.T) {
	ids := NewIDAllocator(0)
	const workers, per = 16, 500
	got := make(chan int64, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				got <- ids.Next()
			}
		}()
	}
	wg.Wait()
	close(got)

	seen := make(map[int64]bool, workers*per)
	for id := range got {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*per {
		t.Fatalf("expected %d ids, got %d", workers*per, len(seen))
	}
}

func mustLearner(t *testing.T, text string) *model.Learner {
	t.Helper()
	program, err := instruction.ParseProgram(text)
	if err != nil {
		t.Fatalf("parse program: %v", err)
	}
	l, err := NewWithProgram(NewIDAllocator(0), model.AtomicAction(0), program, 8, 0)
	if err != nil {
		t.Fatalf("new learner: %v", err)
	}
	return l
}

func TestBidOfZeroProgramIsOneHalf(t *testing.T) {
	l := mustLearner(t, "sum r0 r0")
	got := Bid(vm.NewMachine(vm.Config{}), l, []float64{4, 2}, nil)
	if got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestBidCarriesRegistersAcrossCallsWithStore(t *testing.T) {
	l := mustLearner(t, "sum r0 o0")
	m := vm.NewMachine(vm.Config{})
	store := vm.NewRegisterStore()

	first := Bid(m, l, []float64{1}, store)
	second := Bid(m, l, []float64{1}, store)
	if math.Abs(first-Logistic(1)) > 1e-12 {
		t.Fatalf("first bid = %v", first)
	}
	if math.Abs(second-Logistic(2)) > 1e-12 {
		t.Fatalf("second bid should see carried register, got %v", second)
	}
	if bank, _ := store.Lookup(l.ID); bank[0] != 2 {
		t.Fatalf("stored bank = %v", bank)
	}
}

func TestBidWithoutStoreIsStateless(t *testing.T) {
	l := mustLearner(t, "sum r0 o0")
	m := vm.NewMachine(vm.Config{})
	first := Bid(m, l, []float64{1}, nil)
	second := Bid(m, l, []float64{1}, nil)
	if first != second {
		t.Fatalf("stateless bids differ: %v vs %v", first, second)
	}
}

func TestBidStaysInOpenUnitInterval(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m := vm.NewMachine(vm.Config{})
	obs := []float64{-3, 0.5, 2, 7}
	checked := 0
	for i := 0; i < 300; i++ {
		l, err := New(NewIDAllocator(0), rng, model.AtomicAction(0), 8, 0)
		if err != nil {
			t.Fatalf("new learner: %v", err)
		}
		raw := m.Execute(l.Program, obs, vm.NewRegisters())
		bid := Bid(m, l, obs, nil)
		if bid != Logistic(raw) {
			t.Fatalf("bid %v does not match logistic(%v)", bid, raw)
		}
		// Large raw values round to exactly 1.
		if math.Abs(raw) > 30 {
			continue
		}
		checked++
		if bid <= 0 || bid >= 1 {
			t.Fatalf("bid %v for raw %v outside (0,1)", bid, raw)
		}
	}
	if checked == 0 {
		t.Fatal("no learner produced a non-saturating raw value")
	}
}

func TestLogistic(t *testing.T) {
	if Logistic(0) != 0.5 {
		t.Fatal("logistic(0) must be 0.5")
	}
	for _, x := range []float64{-30, -1, 1, 30} {
		if v := Logistic(x); v <= 0 || v >= 1 {
			t.Fatalf("logistic(%v) = %v", x, v)
		}
	}
	if v := Logistic(-1e6); v != 0 || math.IsNaN(v) {
		t.Fatalf("logistic(-1e6) = %v", v)
	}
}
