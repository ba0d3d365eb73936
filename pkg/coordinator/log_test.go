package coordinator

import "testing"

func TestReplayCommitLogMarkers(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  replayState
	}{
		{
			name:  "dead init, no phase one",
			lines: []string{"File Name: composites/1.jpg", "Sources: a:1.jpg,b:2.jpg"},
			want: replayState{
				fileName: "composites/1.jpg",
				sources:  []string{"a:1.jpg", "b:2.jpg"},
			},
		},
		{
			name:  "phase one only",
			lines: []string{"File Name: composites/1.jpg", "Sources: a:1.jpg", "Phase One"},
			want: replayState{
				fileName: "composites/1.jpg",
				sources:  []string{"a:1.jpg"},
				phaseOne: true,
			},
		},
		{
			name:  "decided yes",
			lines: []string{"File Name: composites/1.jpg", "Sources: a:1.jpg", "Phase One", "Phase Two: yes"},
			want: replayState{
				fileName:   "composites/1.jpg",
				sources:    []string{"a:1.jpg"},
				phaseOne:   true,
				decision:   DecisionYes,
				hasDecided: true,
			},
		},
		{
			name:  "done",
			lines: []string{"File Name: composites/1.jpg", "Sources: a:1.jpg", "Phase One", "Phase Two: abort", "DONE"},
			want: replayState{
				fileName:   "composites/1.jpg",
				sources:    []string{"a:1.jpg"},
				phaseOne:   true,
				decision:   DecisionAbort,
				hasDecided: true,
				done:       true,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := replayCommitLog(tc.lines)
			if err != nil {
				t.Fatalf("replayCommitLog: %v", err)
			}
			if got.fileName != tc.want.fileName || got.phaseOne != tc.want.phaseOne ||
				got.decision != tc.want.decision || got.hasDecided != tc.want.hasDecided || got.done != tc.want.done {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if len(got.sources) != len(tc.want.sources) {
				t.Fatalf("sources len got %d, want %d", len(got.sources), len(tc.want.sources))
			}
			for i := range got.sources {
				if got.sources[i] != tc.want.sources[i] {
					t.Fatalf("sources[%d] got %q, want %q", i, got.sources[i], tc.want.sources[i])
				}
			}
		})
	}
}

func TestReplayCommitLogRejectsMalformedLine(t *testing.T) {
	_, err := replayCommitLog([]string{"File Name: x.jpg", "garbage line"})
	if err == nil {
		t.Fatal("expected error for malformed line, got nil")
	}
}

func TestReplayCommitLogRejectsMalformedDecision(t *testing.T) {
	_, err := replayCommitLog([]string{"File Name: x.jpg", "Phase Two: maybe"})
	if err == nil {
		t.Fatal("expected error for malformed decision, got nil")
	}
}

func TestLogPathStripsExtension(t *testing.T) {
	got := logPath("log", "composites/1.jpg")
	want := "log/log_1.txt"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
