package epath

import (
	"bytes"
	"testing"
)

func TestEncodeBackplane(t *testing.T) {
	got := EncodeBackplane(0)
	want := []byte{0x01, 0x01, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeBackplane(0) = % X, want % X", got, want)
	}
}

func TestEncodePortLink_LengthPrefixInWords(t *testing.T) {
	got := EncodePortLink(1, 5)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != 1 {
		t.Fatalf("length word = %d, want 1", got[0])
	}
}

func TestAppendSegment_ChainsAndRecomputesLength(t *testing.T) {
	path := EncodeBackplane(0)
	chained, err := AppendSegment(path, 2, 10)
	if err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}
	want := []byte{0x02, 0x01, 0x00, 0x02, 0x0A}
	if !bytes.Equal(chained, want) {
		t.Fatalf("chained = % X, want % X", chained, want)
	}
}

func TestAppendSegment_EmptyPathStartsFresh(t *testing.T) {
	got, err := AppendSegment(nil, 1, 3)
	if err != nil {
		t.Fatalf("AppendSegment: %v", err)
	}
	want := EncodePortLink(1, 3)
	if !bytes.Equal(got, want) {
		t.Fatalf("got = % X, want % X", got, want)
	}
}
