package types

import (
	"regexp"
	"strings"
	"testing"
)

var validName = regexp.MustCompile(`^[0-9A-Za-z_]{1,63}$`)

func TestSyncNameCharset(t *testing.T) {
	cases := []struct {
		database, index string
	}{
		{"mydb", "myindex"},
		{"My-DB", "some.index"},
		{"db with spaces", "idx!!!"},
		{"", ""},
		{strings.Repeat("x", 100), strings.Repeat("y", 100)},
	}

	for _, c := range cases {
		name := SyncName(c.database, c.index)
		if name == "" {
			continue
		}
		if !validName.MatchString(name) {
			t.Errorf("SyncName(%q, %q) = %q, not a valid name", c.database, c.index, name)
		}
	}
}

func TestSyncNameIsPureFunction(t *testing.T) {
	a := SyncName("book_store", "books")
	b := SyncName("book_store", "books")
	if a != b {
		t.Errorf("SyncName is not deterministic: %q != %q", a, b)
	}
}

func TestSyncNameTruncation(t *testing.T) {
	name := SyncName(strings.Repeat("a", 100), strings.Repeat("b", 100))
	if len(name) != 63 {
		t.Errorf("expected truncation to 63 bytes, got %d", len(name))
	}
}

func TestPayloadData(t *testing.T) {
	p := Payload{Old: Row{"id": "1"}, New: Row{}}
	if got := p.Data(); got["id"] != "1" {
		t.Errorf("expected Data() to fall back to Old, got %v", got)
	}

	p2 := Payload{Old: Row{"id": "1"}, New: Row{"id": "2"}}
	if got := p2.Data(); got["id"] != "2" {
		t.Errorf("expected Data() to prefer New, got %v", got)
	}
}

func TestPayloadPrimaryKeyValues(t *testing.T) {
	p := Payload{New: Row{"id": 7, "author_id": 3}}
	values, err := p.PrimaryKeyValues([]string{"id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values[0] != "7" {
		t.Errorf("expected [7], got %v", values)
	}

	if _, err := p.PrimaryKeyValues([]string{"missing"}); err == nil {
		t.Error("expected error for missing primary key")
	}
}
