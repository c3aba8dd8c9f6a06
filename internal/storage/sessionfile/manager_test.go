package sessionfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFormatParseName(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 13, 2, 3, 456789000, time.UTC)

	name := FormatName(ts)
	if name != "2026-063T13:02:03.456789.session" {
		t.Fatalf("FormatName() = %q", name)
	}

	got, err := ParseName(name)
	if err != nil {
		t.Fatalf("ParseName() error = %v", err)
	}
	if !got.Equal(ts) {
		t.Errorf("ParseName() = %v, want %v", got, ts)
	}

	for _, bad := range []string{"2026-063T13:02:03.456789.json", "garbage.session", ""} {
		if _, err := ParseName(bad); !errors.Is(err, ErrBadName) {
			t.Errorf("ParseName(%q) error = %v, want ErrBadName", bad, err)
		}
	}
}

func TestManager_CreateRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	info, err := m.Create(time.Now(), []byte(`{"graphql_url":"x"}`))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	st, err := os.Stat(info.Path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Mode().Perm() != DefaultFileMode {
		t.Errorf("mode = %v, want %v", st.Mode().Perm(), os.FileMode(DefaultFileMode))
	}

	data, err := m.Read(info)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `{"graphql_url":"x"}` {
		t.Errorf("Read() = %q", data)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestManager_ListOrder(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		if _, err := m.Create(base.Add(d), []byte("{}")); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	// Unparseable record and unrelated file.
	os.WriteFile(filepath.Join(dir, "zzz.session"), []byte("{}"), 0600)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600)

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 4 {
		t.Fatalf("len(List()) = %d, want 4", len(infos))
	}
	want := []string{
		FormatName(base.Add(2 * time.Hour)),
		FormatName(base.Add(time.Hour)),
		FormatName(base),
		"zzz.session",
	}
	for i, w := range want {
		if infos[i].Name != w {
			t.Errorf("List()[%d] = %q, want %q", i, infos[i].Name, w)
		}
	}
	if infos[3].Valid {
		t.Error("unparseable record should not be valid")
	}
}

func TestManager_ListTieBreak(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "aaa.session"), []byte("{}"), 0600)
	os.WriteFile(filepath.Join(dir, "bbb.session"), []byte("{}"), 0600)

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "bbb.session" {
		t.Errorf("tie should break by name descending, got %v", infos)
	}
}

func TestManager_PruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	var newest *Info
	for i := 0; i < 4; i++ {
		info, err := m.Create(base.Add(time.Duration(i)*time.Minute), []byte("{}"))
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		newest = info
	}

	kept, removed, err := m.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if kept.Name != newest.Name {
		t.Errorf("Prune kept %q, want %q", kept.Name, newest.Name)
	}
	if len(removed) != 3 {
		t.Errorf("Prune removed %d, want 3", len(removed))
	}

	infos, _ := m.List()
	if len(infos) != 1 || infos[0].Name != newest.Name {
		t.Fatalf("after Prune List() = %v", infos)
	}
}

func TestManager_PruneEmpty(t *testing.T) {
	m, err := NewManager(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, _, err := m.Prune(); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("Prune() error = %v, want ErrNoRecords", err)
	}
}

func TestManager_RemoveAll(t *testing.T) {
	m, err := NewManager(DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	base := time.Now()
	for i := 0; i < 3; i++ {
		m.Create(base.Add(time.Duration(i)*time.Second), []byte("{}"))
	}

	n, err := m.RemoveAll()
	if err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if n != 3 {
		t.Errorf("RemoveAll() = %d, want 3", n)
	}
	infos, _ := m.List()
	if len(infos) != 0 {
		t.Errorf("List() after RemoveAll = %d records", len(infos))
	}
}

func TestNewManager_EmptyDir(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("NewManager with empty dir should error")
	}
}
