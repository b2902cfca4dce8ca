package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_Empty(t *testing.T) {
	s := NewSplitter(500, 50)
	if got := s.Split("  \n\n "); got != nil {
		t.Errorf("Split(blank) = %q, want nil", got)
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(500, 50)
	got := s.Split("  Senior Go engineer with five years of Kubernetes.\n")
	if len(got) != 1 || got[0] != "Senior Go engineer with five years of Kubernetes." {
		t.Errorf("Split = %q", got)
	}
}

func TestSplit_WordsWithOverlap(t *testing.T) {
	s := NewSplitter(20, 5)
	got := s.Split("alpha beta gamma delta epsilon zeta eta theta")
	want := []string{"alpha beta gamma", "gamma delta epsilon", "zeta eta theta"}
	if len(got) != len(want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	s := NewSplitter(40, 0)
	text := "Skills: Go, SQL, Docker.\n\nExperience: six years backend.\n\nCerts: CKA."
	got := s.Split(text)
	want := []string{"Skills: Go, SQL, Docker.", "Experience: six years backend.", "Certs: CKA."}
	if len(got) != len(want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_LongWordFallsBackToRunes(t *testing.T) {
	s := NewSplitter(10, 0)
	got := s.Split(strings.Repeat("é", 25))
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3: %q", len(got), got)
	}
	for _, c := range got {
		if n := utf8.RuneCountInString(c); n > 10 {
			t.Errorf("chunk %q has %d runes, want <= 10", c, n)
		}
	}
}

func TestSplit_ChunksRespectSize(t *testing.T) {
	s := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	var b strings.Builder
	for i := 0; i < 80; i++ {
		b.WriteString("Designs resilient distributed systems and mentors engineers. ")
		if i%7 == 6 {
			b.WriteString("\n\n")
		}
	}
	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > DefaultChunkSize {
			t.Errorf("chunk %d has %d runes, want <= %d", i, n, DefaultChunkSize)
		}
	}
}

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.size != DefaultChunkSize || s.overlap != DefaultChunkOverlap {
		t.Errorf("size, overlap = %d, %d; want defaults", s.size, s.overlap)
	}
	s = NewSplitter(100, 150)
	if s.overlap >= s.size {
		t.Errorf("overlap %d not below size %d", s.overlap, s.size)
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("7f3a", 2); got != "7f3a_chunk_2" {
		t.Errorf("ChunkID = %q, want %q", got, "7f3a_chunk_2")
	}
}
