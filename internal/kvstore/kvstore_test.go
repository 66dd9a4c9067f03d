package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return s, path
}

func TestOpen_MissingFile(t *testing.T) {
	s, _ := tempStore(t)
	if _, err := s.Get("anything"); err != ErrNotFound {
		t.Errorf("Get() on empty store = %v, want ErrNotFound", err)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.Put("k", []byte(`"v"`)); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if string(got) != `"v"` {
		t.Errorf("Get() = %s, want %q", got, `"v"`)
	}
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	s, path := tempStore(t)

	type rec struct {
		Name string `json:"name"`
	}
	if err := s.PutJSON("user", rec{Name: "wei"}); err != nil {
		t.Fatalf("PutJSON() error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() after write error: %v", err)
	}
	var got rec
	if err := reopened.GetJSON("user", &got); err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if got.Name != "wei" {
		t.Errorf("reloaded name = %q, want %q", got.Name, "wei")
	}
}

func TestOpen_UnknownSchemaVersionDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	old := fileState{
		SchemaVersion: SchemaVersion + 1,
		Entries:       map[string]json.RawMessage{"k": json.RawMessage(`"v"`)},
	}
	data, _ := json.Marshal(old)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if s.Exists("k") {
		t.Error("entry from unknown schema version should be discarded")
	}
}

func TestOpen_CorruptFileDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() on corrupt file error: %v", err)
	}
	if s.Exists("k") {
		t.Error("corrupt file should yield an empty store")
	}
}

func TestDelete_And_Clear(t *testing.T) {
	s, _ := tempStore(t)

	_ = s.Put("a", []byte(`1`))
	_ = s.Put("b", []byte(`2`))

	if err := s.Delete("a", "missing"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if s.Exists("a") {
		t.Error("deleted key still exists")
	}
	if !s.Exists("b") {
		t.Error("unrelated key was removed")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if s.Exists("b") {
		t.Error("Clear() left entries behind")
	}
}

func TestFlush_WritesSchemaVersion(t *testing.T) {
	s, path := tempStore(t)
	_ = s.Put("k", []byte(`"v"`))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	if state.SchemaVersion != SchemaVersion {
		t.Errorf("schema_version = %d, want %d", state.SchemaVersion, SchemaVersion)
	}
}
