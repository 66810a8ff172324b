package particles

import (
	"errors"
	"testing"

	"github.com/onnwee/particle-dynamics/internal/simerr"
	"github.com/onnwee/particle-dynamics/internal/vec3"
)

func TestNewSystemIsEmpty(t *testing.T) {
	s := New()
	if s.Len() != 0 {
		t.Fatalf("expected empty system, got %d particles", s.Len())
	}
	if s.HasPotential() {
		t.Error("new system should have no potential")
	}
	if len(s.Positions()) != 0 || len(s.Velocities()) != 0 || len(s.Masses()) != 0 {
		t.Error("accessors should return empty slices")
	}
}

func TestAddGrowsInLockStep(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		n := s.Add(vec3.New(float64(i), 0, 0), vec3.New(0, float64(i), 0), float64(i+1))
		if n != i+1 {
			t.Fatalf("Add returned %d, want %d", n, i+1)
		}
	}

	pos, vel, mass := s.Positions(), s.Velocities(), s.Masses()
	if len(pos) != 5 || len(vel) != 5 || len(mass) != 5 {
		t.Fatalf("misaligned lengths: %d %d %d", len(pos), len(vel), len(mass))
	}
	for i := range pos {
		if pos[i].X != float64(i) || vel[i].Y != float64(i) || mass[i] != float64(i+1) {
			t.Errorf("row %d out of order: %v %v %v", i, pos[i], vel[i], mass[i])
		}
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := New()
	s.Add(vec3.New(1, 2, 3), vec3.New(4, 5, 6), 7)

	pos := s.Positions()
	pos[0] = vec3.Zero
	mass := s.Masses()
	mass[0] = 0

	if s.Positions()[0] != vec3.New(1, 2, 3) {
		t.Error("mutating returned positions changed the system")
	}
	if s.Masses()[0] != 7 {
		t.Error("mutating returned masses changed the system")
	}
}

func TestPotentialLifecycle(t *testing.T) {
	s := New()
	s.SetPotential(PotentialFromPure(func(p vec3.Vec3) vec3.Vec3 { return p.Neg() }))
	if !s.HasPotential() {
		t.Fatal("expected potential to be set")
	}

	f, err := s.Potential().Force(vec3.New(1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != vec3.New(-1, 0, 0) {
		t.Errorf("expected (-1,0,0), got %v", f)
	}

	s.ClearPotential()
	if s.HasPotential() {
		t.Error("expected potential to be cleared")
	}
}

func TestPotentialFuncPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	p := PotentialFunc(func(vec3.Vec3) (vec3.Vec3, error) { return vec3.Zero, boom })
	if _, err := p.Force(vec3.Zero); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := New()
	s.Add(vec3.New(1, 0, 0), vec3.New(0, 1, 0), 2)
	s.Add(vec3.New(2, 0, 0), vec3.New(0, 2, 0), 3)

	snap := s.Snapshot()
	if snap.Len() != 2 {
		t.Fatalf("expected 2 particles in snapshot, got %d", snap.Len())
	}

	positions, _, _ := s.MutableState()
	positions[0] = vec3.New(9, 9, 9)
	if snap.Positions[0] != vec3.New(1, 0, 0) {
		t.Error("snapshot should not alias live state")
	}

	if err := s.Restore(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if s.Positions()[0] != vec3.New(1, 0, 0) {
		t.Errorf("restore did not reset position, got %v", s.Positions()[0])
	}
}

func TestRestoreRejectsMisalignedSnapshot(t *testing.T) {
	s := New()
	s.Add(vec3.Zero, vec3.Zero, 1)

	err := s.Restore(Snapshot{
		Positions:  []vec3.Vec3{vec3.Zero},
		Velocities: nil,
		Masses:     []float64{1},
	})
	if simerr.CodeOf(err) != simerr.InvalidState {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
	if s.Len() != 1 {
		t.Error("failed restore must not modify the system")
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Add(vec3.Zero, vec3.Zero, 1)
	s.Reset()
	if s.Len() != 0 {
		t.Errorf("expected empty system after reset, got %d", s.Len())
	}
}
