package domain

import (
	"errors"
	"testing"
)

func TestQueryValidate(t *testing.T) {
	cases := map[string]error{
		"ubuntu":    nil,
		"  debian ": nil,
		"":          ErrEmptyQuery,
		"   ":       ErrEmptyQuery,
		"\t\n":      ErrEmptyQuery,
	}
	for term, want := range cases {
		got := Query{Term: term}.Validate()
		if !errors.Is(got, want) && got != want {
			t.Errorf("Validate(%q) = %v; want %v", term, got, want)
		}
	}
}

func TestOutcomeFailed(t *testing.T) {
	if (Outcome{IndexerID: "x"}).Failed() {
		t.Fatalf("outcome without error reported as failed")
	}
	if !(Outcome{IndexerID: "x", Err: errors.New("boom")}).Failed() {
		t.Fatalf("outcome with error not reported as failed")
	}
}

func TestIndexerTableName(t *testing.T) {
	if got := (Indexer{}).TableName(); got != "indexers" {
		t.Fatalf("TableName() = %q; want %q", got, "indexers")
	}
}
