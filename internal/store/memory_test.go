package store

import (
	"errors"
	"reflect"
	"testing"

	"filmcat/internal/catalog"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	var got testDoc
	if ok, err := s.Load(catalog.UsersStore, &got); ok || err != nil {
		t.Fatalf("Load() on empty store = %v, %v", ok, err)
	}

	want := testDoc{Items: []string{"one"}}
	if err := s.Save(catalog.UsersStore, want); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(catalog.UsersStore, testDoc{Items: []string{"two"}}); err != nil {
		t.Fatal(err)
	}
	if s.Saves() != 2 {
		t.Errorf("Saves() = %d, want 2", s.Saves())
	}
	if raw, ok := s.Raw(catalog.UsersStore); !ok || string(raw) != `{"items":["two"]}` {
		t.Errorf("Raw() = %s, %v", raw, ok)
	}

	backups, _ := s.Backups(catalog.UsersStore)
	if len(backups) != 1 {
		t.Fatalf("Backups() = %d entries, want 1", len(backups))
	}
	if err := s.Restore(catalog.UsersStore, backups[0].Ref, nil); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if _, err := s.Load(catalog.UsersStore, &got); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after restore = %+v, want %+v", got, want)
	}
}

func TestMemoryStore_Malformed(t *testing.T) {
	s := NewMemoryStore()
	s.Put(catalog.FilmsStore, []byte("not json"))

	var got testDoc
	_, err := s.Load(catalog.FilmsStore, &got)
	var malformed *catalog.MalformedStoreError
	if !errors.As(err, &malformed) {
		t.Errorf("Load() error = %v, want *MalformedStoreError", err)
	}
}
