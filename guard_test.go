package lookupd

import (
	"context"
	"testing"
)

func TestDuplicateGuardSingleKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	guard := NewDuplicateGuard(store)

	existing := Record{FieldID: NewID(), FieldIsDeleted: false, "name": "Wakanda"}
	if err := store.Put(ctx, "countries", existing); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	t.Run("conflict", func(t *testing.T) {
		candidate := Record{FieldID: NewID(), "name": "Wakanda"}
		err := guard.Check(ctx, CountryDescriptor, candidate, "")
		if !IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
		want := "country with name: Wakanda already exists"
		if Message(err) != want {
			t.Errorf("message = %q, want %q", Message(err), want)
		}
	})

	t.Run("no conflict on different name", func(t *testing.T) {
		candidate := Record{FieldID: NewID(), "name": "Norway"}
		if err := guard.Check(ctx, CountryDescriptor, candidate, ""); err != nil {
			t.Errorf("expected no conflict, got %v", err)
		}
	})

	t.Run("self excluded on update", func(t *testing.T) {
		if err := guard.Check(ctx, CountryDescriptor, existing, existing.ID()); err != nil {
			t.Errorf("updating a record should not conflict with itself: %v", err)
		}
	})
}

func TestDuplicateGuardIgnoresSoftDeleted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	guard := NewDuplicateGuard(store)

	deleted := Record{FieldID: NewID(), FieldIsDeleted: true, "name": "Atlantis"}
	if err := store.Put(ctx, "countries", deleted); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	candidate := Record{FieldID: NewID(), "name": "Atlantis"}
	if err := guard.Check(ctx, CountryDescriptor, candidate, ""); err != nil {
		t.Errorf("soft-deleted records should not block reuse: %v", err)
	}
}

func TestDuplicateGuardCompositeKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	guard := NewDuplicateGuard(store)

	existing := Record{
		FieldID: NewID(), FieldIsDeleted: false,
		"type": "phone", "manufacturer": "Acme", "model": "X1",
		"operatingSystem": "Android", "operatingSystemVersion": "ANY",
	}
	if err := store.Put(ctx, "devices", existing); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	t.Run("full tuple conflicts", func(t *testing.T) {
		candidate := existing.Clone()
		candidate[FieldID] = NewID()
		err := guard.Check(ctx, DeviceDescriptor, candidate, "")
		if !IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
		want := "device with [ type: phone, manufacturer: Acme, model: X1, operatingSystem: Android, operatingSystemVersion: ANY ] already exists"
		if Message(err) != want {
			t.Errorf("message = %q, want %q", Message(err), want)
		}
	})

	t.Run("one field differs", func(t *testing.T) {
		candidate := existing.Clone()
		candidate[FieldID] = NewID()
		candidate["operatingSystemVersion"] = "14"
		if err := guard.Check(ctx, DeviceDescriptor, candidate, ""); err != nil {
			t.Errorf("tuple differing in one field should pass: %v", err)
		}
	})
}
