package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "notes", want: "notes"},
		{name: "alphanumeric", input: "save-slot_01", want: "save-slot_01"},
		{name: "trimmed", input: "  notes  ", want: "notes"},
		{name: "interior dot", input: "backup.v2", want: "backup.v2"},
		{name: "empty", input: "", wantErr: true},
		{name: "whitespace only", input: "   \t ", wantErr: true},
		{name: "forward slash", input: "a/b", wantErr: true},
		{name: "backslash", input: `a\b`, wantErr: true},
		{name: "nul byte", input: "a\x00b", wantErr: true},
		{name: "parent reference", input: "..", wantErr: true},
		{name: "parent segment", input: "../etc/passwd", wantErr: true},
		{name: "embedded parent", input: "a..b", wantErr: true},
		{name: "leading dot", input: ".hidden", wantErr: true},
		{name: "too long", input: strings.Repeat("x", 101), wantErr: true},
		{name: "max length", input: strings.Repeat("x", 100), want: strings.Repeat("x", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Fatalf("sanitizeName(%q) err = %v, want ErrInvalidName", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeName(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("sanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTraversalNamesNeverTouchOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "data")
	s, err := New(root, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Plant a file just outside the root; no operation may reach it.
	victim := filepath.Join(parent, "victim.json")
	if err := os.WriteFile(victim, []byte(`{"v":1}`), 0600); err != nil {
		t.Fatalf("plant victim: %v", err)
	}

	hostile := []string{
		"../victim",
		"..\\victim",
		"../../etc/passwd",
		"a/../../victim",
		"..",
		"victim\x00",
	}
	for _, name := range hostile {
		if _, err := s.Load(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Load(%q) err = %v, want ErrInvalidName", name, err)
		}
		if _, err := s.Save(name, json.RawMessage(`{}`)); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) err = %v, want ErrInvalidName", name, err)
		}
		if err := s.Delete(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Delete(%q) err = %v, want ErrInvalidName", name, err)
		}
	}

	if _, err := os.Stat(victim); err != nil {
		t.Fatalf("victim file was touched: %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("hostile names left files in root: %v", entries)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	docs := []string{
		`{"a":1}`,
		`[1,2,3]`,
		`"just a string"`,
		`true`,
		`{"nested":{"deep":[null,1.5,"x"]}}`,
	}
	for i, doc := range docs {
		name := fmt.Sprintf("doc%d", i)
		if _, err := s.Save(name, json.RawMessage(doc)); err != nil {
			t.Fatalf("Save(%q): %v", name, err)
		}
		got, err := s.Load(name)
		if err != nil {
			t.Fatalf("Load(%q): %v", name, err)
		}
		var want, have any
		if err := json.Unmarshal([]byte(doc), &want); err != nil {
			t.Fatalf("unmarshal want: %v", err)
		}
		if err := json.Unmarshal(got, &have); err != nil {
			t.Fatalf("unmarshal have: %v", err)
		}
		if !reflect.DeepEqual(want, have) {
			t.Errorf("round trip of %s = %s", doc, got)
		}
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("slot", json.RawMessage(`{"v":1}`)); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if _, err := s.Save("slot", json.RawMessage(`{"v":2}`)); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err := s.Load("slot")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("Load after overwrite = %s, want {\"v\":2}", got)
	}
}

func TestSaveInternalNameFallback(t *testing.T) {
	s := newTestStore(t)

	name, err := s.Save("", json.RawMessage(`{"_internalName":"alpha","x":1}`))
	if err != nil {
		t.Fatalf("Save with fallback: %v", err)
	}
	if name != "alpha" {
		t.Errorf("Save returned name %q, want alpha", name)
	}
	if _, err := s.Load("alpha"); err != nil {
		t.Errorf("Load(alpha) after fallback save: %v", err)
	}

	// Explicit name wins over the internal field.
	name, err = s.Save("beta", json.RawMessage(`{"_internalName":"alpha","x":2}`))
	if err != nil {
		t.Fatalf("Save with explicit name: %v", err)
	}
	if name != "beta" {
		t.Errorf("Save returned name %q, want beta", name)
	}

	bad := []string{
		`{"x":1}`,                  // field missing
		`{"_internalName":42}`,     // not a string
		`{"_internalName":"  "}`,   // blank
		`[1,2,3]`,                  // not an object
		`{"_internalName":"a/b"}`,  // fails sanitization downstream
	}
	for _, doc := range bad {
		if _, err := s.Save("", json.RawMessage(doc)); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(\"\", %s) err = %v, want ErrInvalidName", doc, err)
		}
	}
}

func TestCustomNameField(t *testing.T) {
	s, err := New(t.TempDir(), "slotName")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name, err := s.Save("", json.RawMessage(`{"slotName":"gamma"}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name != "gamma" {
		t.Errorf("name = %q, want gamma", name)
	}
}

func TestListLifecycle(t *testing.T) {
	s := newTestStore(t)

	names, err := s.List()
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("List on empty store = %v", names)
	}

	for _, n := range []string{"notes", "alpha", "zeta"} {
		if _, err := s.Save(n, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("Save(%q): %v", n, err)
		}
	}

	names, err = s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "notes", "zeta"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("List = %v, want %v", names, want)
	}

	if err := s.Delete("notes"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	names, _ = s.List()
	if !reflect.DeepEqual(names, []string{"alpha", "zeta"}) {
		t.Fatalf("List after delete = %v", names)
	}
	if _, err := s.Load("notes"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete err = %v, want ErrNotFound", err)
	}
}

func TestListSkipsForeignFiles(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("real", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, n := range []string{".hidden.json", ".tmp-123", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(s.Root(), n), []byte("x"), 0600); err != nil {
			t.Fatalf("plant %q: %v", n, err)
		}
	}
	if err := os.Mkdir(filepath.Join(s.Root(), "subdir.json"), 0750); err != nil {
		t.Fatalf("plant dir: %v", err)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"real"}) {
		t.Errorf("List = %v, want [real]", names)
	}
}

func TestDeleteNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("keep", json.RawMessage(`{"k":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete(missing) err = %v, want ErrNotFound", err)
	}
	// Unrelated archives are untouched.
	if _, err := s.Load("keep"); err != nil {
		t.Errorf("Load(keep) after failed delete: %v", err)
	}
}

func TestLoadCorruptData(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Root(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("plant corrupt file: %v", err)
	}
	if _, err := s.Load("broken"); !errors.Is(err, ErrCorruptData) {
		t.Fatalf("Load(broken) err = %v, want ErrCorruptData", err)
	}
}

func TestSaveRejectsInvalidPayload(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("x", nil); !errors.Is(err, ErrCorruptData) {
		t.Errorf("Save with nil payload err = %v, want ErrCorruptData", err)
	}
	if _, err := s.Save("x", json.RawMessage("{oops")); !errors.Is(err, ErrCorruptData) {
		t.Errorf("Save with invalid payload err = %v, want ErrCorruptData", err)
	}
}

func TestConcurrentSavesSameName(t *testing.T) {
	s := newTestStore(t)

	// Two large distinguishable documents; a torn write would mix them.
	docA, _ := json.Marshal(map[string]string{"doc": "A", "fill": strings.Repeat("a", 64*1024)})
	docB, _ := json.Marshal(map[string]string{"doc": "B", "fill": strings.Repeat("b", 64*1024)})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		doc := docA
		if i%2 == 1 {
			doc = docB
		}
		wg.Add(1)
		go func(doc json.RawMessage) {
			defer wg.Done()
			if _, err := s.Save("contended", doc); err != nil {
				t.Errorf("Save: %v", err)
			}
		}(doc)
	}
	wg.Wait()

	got, err := s.Load("contended")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(docA) && string(got) != string(docB) {
		t.Fatalf("store contains a mix of concurrent writes (len=%d)", len(got))
	}
}

func TestConcurrentReadersSeeWholeDocuments(t *testing.T) {
	s := newTestStore(t)
	doc, _ := json.Marshal(map[string]string{"fill": strings.Repeat("z", 32*1024)})
	if _, err := s.Save("shared", doc); err != nil {
		t.Fatalf("seed Save: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			if _, err := s.Save("shared", doc); err != nil {
				t.Errorf("Save: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 100; i++ {
		got, err := s.Load("shared")
		if err != nil {
			t.Fatalf("Load during writes: %v", err)
		}
		if !json.Valid(got) {
			t.Fatalf("reader observed invalid JSON")
		}
	}
	<-done
}
