package uploader

import (
	"errors"
	"testing"
)

func TestParseListing(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{name: "empty", data: "", want: 0},
		{name: "one file", data: "fmain.js\x00\x00\x00\x01\x00", want: 1},
		{name: "zero size dir", data: "dlib\x00\x00\x00\x00\x00", want: 1},
		{name: "unterminated name", data: "fmain.js", wantErr: true},
		{name: "truncated size", data: "fa\x00\x00\x01", wantErr: true},
		{name: "missing flag", data: "\x00\x00\x00\x00\x00", wantErr: true},
		{name: "unknown flag", data: "xa\x00\x00\x00\x00\x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseListing([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedListing) {
					t.Fatalf("err = %v, want ErrMalformedListing", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseHashes(t *testing.T) {
	digest := "\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0a\x0b\x0c\x0d\x0e\x0f\x10\x11\x12\x13"

	got, err := parseHashes([]byte("a\x00" + digest + "b/c\x00" + digest))
	if err != nil {
		t.Fatalf("parseHashes failed: %v", err)
	}
	if len(got) != 2 || got[1].Name != "b/c" {
		t.Fatalf("got %+v", got)
	}
	if want := "000102030405060708090a0b0c0d0e0f10111213"; got[0].SHA1 != want {
		t.Errorf("SHA1 = %s, want %s", got[0].SHA1, want)
	}

	if _, err := parseHashes([]byte("a\x00" + digest[:19])); !errors.Is(err, ErrMalformedListing) {
		t.Errorf("truncated digest err = %v", err)
	}
}

func TestParseResources(t *testing.T) {
	got, err := parseResources([]byte("logo.png\x00\x00\x00\x10\x00"))
	if err != nil {
		t.Fatalf("parseResources failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "logo.png" || got[0].Size != 4096 {
		t.Errorf("got %+v", got)
	}
	if _, err := parseResources([]byte("x\x00\x01")); !errors.Is(err, ErrMalformedListing) {
		t.Errorf("truncated size err = %v", err)
	}
}
