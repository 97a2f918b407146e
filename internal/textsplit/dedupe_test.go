package textsplit

import (
	"strings"
	"testing"
)

func chunksOf(texts ...string) []Chunk {
	out := make([]Chunk, len(texts))
	for i, t := range texts {
		out[i] = Chunk{Text: t, Offset: i}
	}
	return out
}

func texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestDedupeDropsShortChunks(t *testing.T) {
	long := strings.Repeat("meaningful content ", 5)

	kept, dropped := Dedupe(chunksOf("tiny", "   padded but still tiny   ", long))
	if len(kept) != 1 || kept[0].Text != long {
		t.Fatalf("kept = %v, want only the long chunk", texts(kept))
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	a := strings.Repeat("alpha beta gamma delta ", 5)
	b := strings.Repeat("epsilon zeta eta theta ", 5)

	kept, dropped := Dedupe(chunksOf(a, b, a))
	if len(kept) != 2 {
		t.Fatalf("kept %d chunks, want 2", len(kept))
	}
	if kept[0].Text != a || kept[1].Text != b {
		t.Errorf("order not preserved: %v", texts(kept))
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestDedupeSignatureIgnoresCaseAndWhitespace(t *testing.T) {
	base := strings.Repeat("The Quick Brown Fox Jumps ", 4)
	variant := strings.ToUpper(strings.ReplaceAll(base, " ", "  "))

	kept, _ := Dedupe(chunksOf(base, variant))
	if len(kept) != 1 {
		t.Errorf("case/whitespace variants should collapse, kept %d", len(kept))
	}
}

func TestDedupeCollapsesBeyondSignatureWindow(t *testing.T) {
	// Two chunks sharing the first 100 non-space characters are treated
	// as duplicates even when their tails differ. Known approximation.
	prefix := strings.Repeat("x", signatureLen)
	a := prefix + " first tail that goes on for a while"
	b := prefix + " completely different ending text here"

	kept, dropped := Dedupe(chunksOf(a, b))
	if len(kept) != 1 {
		t.Fatalf("kept %d, want 1 (signature collision)", len(kept))
	}
	if kept[0].Text != a {
		t.Errorf("first occurrence should win")
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestDedupeIdempotent(t *testing.T) {
	a := strings.Repeat("one two three four five ", 5)
	b := strings.Repeat("six seven eight nine ten ", 5)

	once, _ := Dedupe(chunksOf(a, b, a, b))
	twice, droppedAgain := Dedupe(once)

	if droppedAgain != 0 {
		t.Errorf("second pass dropped %d chunks, want 0", droppedAgain)
	}
	if len(once) != len(twice) {
		t.Fatalf("second pass changed chunk count: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Text != twice[i].Text {
			t.Errorf("chunk %d changed across passes", i)
		}
	}
}

func TestDedupeNoChunkUnderMinLength(t *testing.T) {
	inputs := chunksOf("a", strings.Repeat("b", minChunkLen-1), strings.Repeat("c", minChunkLen))

	kept, _ := Dedupe(inputs)
	for _, c := range kept {
		if len(strings.TrimSpace(c.Text)) < minChunkLen {
			t.Errorf("chunk %q shorter than minimum survived", c.Text)
		}
	}
	if len(kept) != 1 {
		t.Errorf("kept %d, want 1", len(kept))
	}
}

func TestDedupeEmptyInput(t *testing.T) {
	kept, dropped := Dedupe(nil)
	if len(kept) != 0 || dropped != 0 {
		t.Errorf("Dedupe(nil) = %v, %d", kept, dropped)
	}
}
