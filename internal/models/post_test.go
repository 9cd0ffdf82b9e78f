package models

import (
	"encoding/json"
	"testing"
)

func TestPost_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Post
	}{
		{"integer timestamp", `[100, "hello"]`, Post{Timestamp: 100, Text: "hello"}},
		{"float timestamp truncates", `[1588112345.75, "hi"]`, Post{Timestamp: 1588112345, Text: "hi"}},
		{"swapped types tolerated", `["oops", 42]`, Post{}},
		{"not an array tolerated", `"junk"`, Post{}},
		{"short array tolerated", `[7]`, Post{Timestamp: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Post
			if err := json.Unmarshal([]byte(tt.in), &p); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p != tt.want {
				t.Errorf("got %+v, want %+v", p, tt.want)
			}
		})
	}
}

func TestPost_MarshalRoundtrip(t *testing.T) {
	in := Post{Timestamp: 123, Text: "some text"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[123,"some text"]` {
		t.Errorf("wire form = %s", data)
	}
	var out Post
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("roundtrip: got %+v, want %+v", out, in)
	}
}

func TestUserHistory_decode(t *testing.T) {
	raw := `{"posts": [[1, "a"], [2, "b"]], "hashtags": ["x"]}`
	var h UserHistory
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		t.Fatal(err)
	}
	if len(h.Posts) != 2 || h.Posts[1].Text != "b" || len(h.Hashtags) != 1 {
		t.Errorf("decode mismatch: %+v", h)
	}
}

func TestGroupIndex_IDs(t *testing.T) {
	g := GroupIndex{{UserID: "a"}, {UserID: "b"}}
	ids := g.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs = %v", ids)
	}
}
