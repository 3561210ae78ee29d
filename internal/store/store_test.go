package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "warden.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecentCommands(t *testing.T) {
	s := openTestStore(t)

	for _, cmd := range []string{"echo one", "echo two", "echo three"} {
		if err := s.AppendResult(CommandRecord{Command: cmd, Cwd: "/tmp", Status: "completed"}); err != nil {
			t.Fatalf("AppendResult(%q): %v", cmd, err)
		}
	}

	recent, err := s.RecentCommands(2)
	if err != nil {
		t.Fatalf("RecentCommands: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].Command != "echo three" || recent[1].Command != "echo two" {
		t.Errorf("recent = [%s, %s], want most recent first", recent[0].Command, recent[1].Command)
	}
	if recent[0].ID == "" {
		t.Error("record was stored without an id")
	}
	if recent[0].Timestamp.IsZero() {
		t.Error("record was stored without a timestamp")
	}
}

func TestRecentCommandsEmpty(t *testing.T) {
	s := openTestStore(t)
	recent, err := s.RecentCommands(10)
	if err != nil {
		t.Fatalf("RecentCommands: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("len(recent) = %d, want 0", len(recent))
	}
}

func TestSavedCommandRoundTrip(t *testing.T) {
	s := openTestStore(t)

	saved, err := s.SaveCommand(SavedCommand{Name: "dev", Command: "npm run dev", Cwd: "~/web"})
	if err != nil {
		t.Fatalf("SaveCommand: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("SaveCommand did not assign an id")
	}

	list, err := s.ListSaved()
	if err != nil {
		t.Fatalf("ListSaved: %v", err)
	}
	if len(list) != 1 || list[0].Name != "dev" || list[0].Command != "npm run dev" {
		t.Errorf("ListSaved = %+v", list)
	}
}

func TestListSavedOrderedByCreation(t *testing.T) {
	s := openTestStore(t)

	base := time.Now()
	for i, name := range []string{"third", "first", "second"} {
		offset := map[string]time.Duration{"first": 0, "second": time.Second, "third": 2 * time.Second}[name]
		_, err := s.SaveCommand(SavedCommand{Name: name, Command: "cmd", CreatedAt: base.Add(offset)})
		if err != nil {
			t.Fatalf("SaveCommand %d: %v", i, err)
		}
	}

	list, err := s.ListSaved()
	if err != nil {
		t.Fatalf("ListSaved: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if list[i].Name != w {
			t.Errorf("list[%d].Name = %q, want %q", i, list[i].Name, w)
		}
	}
}

func TestDeleteSaved(t *testing.T) {
	s := openTestStore(t)

	saved, err := s.SaveCommand(SavedCommand{Name: "dev", Command: "npm run dev"})
	if err != nil {
		t.Fatalf("SaveCommand: %v", err)
	}

	existed, err := s.DeleteSaved(saved.ID)
	if err != nil {
		t.Fatalf("DeleteSaved: %v", err)
	}
	if !existed {
		t.Error("DeleteSaved = false for a stored id")
	}

	existed, err = s.DeleteSaved(saved.ID)
	if err != nil {
		t.Fatalf("DeleteSaved second call: %v", err)
	}
	if existed {
		t.Error("DeleteSaved = true for an already-deleted id")
	}

	list, err := s.ListSaved()
	if err != nil {
		t.Fatalf("ListSaved: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len(ListSaved) = %d after delete, want 0", len(list))
	}
}

func TestNilStoreIsBestEffort(t *testing.T) {
	var s *Store
	if err := s.AppendResult(CommandRecord{Command: "echo"}); err != nil {
		t.Errorf("AppendResult on nil store: %v", err)
	}
	if _, err := s.RecentCommands(10); err != nil {
		t.Errorf("RecentCommands on nil store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on nil store: %v", err)
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.AppendResult(CommandRecord{Command: "echo hi", Status: "completed"}); err != nil {
		t.Fatalf("AppendResult: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	recent, err := s.RecentCommands(10)
	if err != nil {
		t.Fatalf("RecentCommands: %v", err)
	}
	if len(recent) != 1 || recent[0].Command != "echo hi" {
		t.Errorf("recent after reopen = %+v", recent)
	}
}
