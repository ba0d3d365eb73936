package coordinator

import "testing"

func TestParseSources(t *testing.T) {
	perNode, participants, err := parseSources([]string{"a:1.jpg", "b:2.jpg", "a:3.jpg"})
	if err != nil {
		t.Fatalf("parseSources: %v", err)
	}

	wantParticipants := []string{"a", "b"}
	if len(participants) != len(wantParticipants) {
		t.Fatalf("participants = %v, want %v", participants, wantParticipants)
	}
	for i, p := range wantParticipants {
		if participants[i] != p {
			t.Fatalf("participants[%d] = %q, want %q (order must be first-seen)", i, participants[i], p)
		}
	}

	if got := perNode["a"]; len(got) != 2 || got[0] != "1.jpg" || got[1] != "3.jpg" {
		t.Fatalf("perNode[a] = %v, want [1.jpg 3.jpg]", got)
	}
	if got := perNode["b"]; len(got) != 1 || got[0] != "2.jpg" {
		t.Fatalf("perNode[b] = %v, want [2.jpg]", got)
	}
}

func TestParseSourcesRejectsMalformed(t *testing.T) {
	tests := [][]string{
		{"noseparator"},
		{":missing-node.jpg"},
		{"missing-file:"},
	}
	for _, sources := range tests {
		if _, _, err := parseSources(sources); err == nil {
			t.Errorf("parseSources(%v): expected error, got nil", sources)
		}
	}
}
