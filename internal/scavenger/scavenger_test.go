package scavenger

import "testing"

func TestExtractLatest(t *testing.T) {
	cases := []struct {
		name   string
		window []byte
		want   byte
		found  bool
	}{
		{"empty", nil, 0, false},
		{"too short", []byte{0x16}, 0, false},
		{"simple hit", []byte{0x16, 0x5A}, 0x5A, true},
		{"rightmost wins", []byte{0x16, 0x01, 0x02, 0x16, 0x5A}, 0x5A, true},
		{"no sentinel", []byte{0x01, 0x02, 0x03}, 0, false},
		{"sentinel at last index ignored", []byte{0x01, 0x16}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := extractLatest(tc.window)
			if found != tc.found {
				t.Fatalf("found = %v, want %v", found, tc.found)
			}
			if found && got != tc.want {
				t.Fatalf("got = %#x, want %#x", got, tc.want)
			}
		})
	}
}
