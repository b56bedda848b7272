package document

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_KeepsOrderAndRawValues(t *testing.T) {
	doc, err := Parse([]byte(`{"title":"Hello","id":42,"nested":{"b":1, "a":2}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := doc.Keys()
	want := []string{"title", "id", "nested"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected keys %v, got %v", want, keys)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"title":"Hello","id":42,"nested":{"b":1,"a":2}}` {
		t.Errorf("unexpected encoding: %s", out)
	}
}

func TestParse_RejectsNonObject(t *testing.T) {
	for _, in := range []string{`[]`, `"x"`, `42`, `{"a":1} {"b":2}`, ``} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestID_StringAndNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"id":"abc"}`, "abc"},
		{`{"id":42}`, "42"},
		{`{"id":12345678901234567890}`, "12345678901234567890"},
		{`{"id":true}`, ""},
		{`{"name":"x"}`, ""},
	}
	for _, tc := range tests {
		if got := MustParse(tc.in).ID(); got != tc.want {
			t.Errorf("ID(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWith_CopiesAndKeepsPosition(t *testing.T) {
	orig := MustParse(`{"id":"1","slug":"old","title":"T"}`)

	updated, err := orig.With("slug", "new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	appended, err := updated.With("likes", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if orig.Slug() != "old" {
		t.Errorf("original mutated: slug=%q", orig.Slug())
	}
	if updated.Slug() != "new" {
		t.Errorf("expected slug new, got %q", updated.Slug())
	}
	out, _ := json.Marshal(appended)
	if string(out) != `{"id":"1","slug":"new","title":"T","likes":3}` {
		t.Errorf("unexpected encoding: %s", out)
	}
	if updated.Has("likes") {
		t.Error("With must not leak into the receiver")
	}
}

func TestText_CollectsNestedStrings(t *testing.T) {
	doc := MustParse(`{"id":1,"title":"Alpha","blocks":[{"type":"p","text":"Beta"}],"n":3}`)
	text := doc.Text()
	for _, want := range []string{"Alpha", "Beta", "p"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in text %q", want, text)
		}
	}
	if strings.Contains(text, "3") {
		t.Errorf("numbers must not be collected: %q", text)
	}
}

func TestDecodeCollection_List(t *testing.T) {
	docs, err := DecodeCollection([]byte(`[{"id":1},"skip",{"id":2}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "1" || docs[1].ID() != "2" {
		t.Errorf("unexpected docs: %+v", docs)
	}
}

func TestDecodeCollection_MapKeepsKeyOrder(t *testing.T) {
	docs, err := DecodeCollection([]byte(`{"zeta":{"id":"zeta"},"alpha":{"id":"alpha"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 || docs[0].ID() != "zeta" || docs[1].ID() != "alpha" {
		t.Errorf("expected file order, got %v, %v", docs[0].ID(), docs[1].ID())
	}
}

func TestDecodeCollection_Invalid(t *testing.T) {
	for _, in := range []string{``, `42`, `[{"id":1}`, `{"a":`} {
		if _, err := DecodeCollection([]byte(in)); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestDetectShape(t *testing.T) {
	if DetectShape([]byte(" [ ]")) != ShapeList {
		t.Error("expected list")
	}
	if DetectShape([]byte("{}")) != ShapeMap {
		t.Error("expected map")
	}
	if DetectShape([]byte("")) != ShapeUnknown {
		t.Error("expected unknown")
	}
}

func TestEncodeCollection_RoundTrip(t *testing.T) {
	docs := []Document{MustParse(`{"id":1,"b":"x"}`), MustParse(`{"id":2}`)}
	data, err := EncodeCollection(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := DecodeCollection(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back) != 2 || back[0].String("b") != "x" {
		t.Errorf("unexpected round trip: %s", data)
	}
}

func TestDecodeCollectionCounted_ReportsSkipped(t *testing.T) {
	docs, skipped, err := DecodeCollectionCounted([]byte(`[{"id":1,"name":"Optiver"}, "legacy-note", null, 42]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || skipped != 3 {
		t.Errorf("expected 1 doc and 3 skipped, got %d and %d", len(docs), skipped)
	}
}

func TestEncodeCollection_KeepsRawValues(t *testing.T) {
	docs, err := DecodeCollection([]byte(`[{"id":1,"body":"<p>R&D</p>","a<b":"x>y","n":1.50}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := EncodeCollection(docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[\n  {\n    \"id\": 1,\n    \"body\": \"<p>R&D</p>\",\n    \"a<b\": \"x>y\",\n    \"n\": 1.50\n  }\n]\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("encoded collection mismatch (-want +got):\n%s", diff)
	}
}
