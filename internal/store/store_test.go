package store

import "testing"

func TestRecordID(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{name: "document naming", rec: Record{"_id": "playlist:abc"}, want: "playlist:abc"},
		{name: "relational naming", rec: Record{"id": "42"}, want: "42"},
		{name: "document naming wins", rec: Record{"_id": "playlist:abc", "id": "42"}, want: "playlist:abc"},
		{name: "no identity", rec: Record{"name": "P1"}, want: ""},
		{name: "empty identity", rec: Record{"id": ""}, want: ""},
		{name: "non-string identity", rec: Record{"id": 42}, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.ID(); got != tc.want {
				t.Fatalf("ID() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRecordClone(t *testing.T) {
	orig := Record{"id": "1", "name": "P1"}
	clone := orig.Clone()
	clone["name"] = "changed"

	if orig["name"] != "P1" {
		t.Fatalf("mutating the clone changed the original: %v", orig["name"])
	}
}
