package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env := Envelope{
		Type:      CommitQuery,
		CommitID:  "composites/1.jpg",
		Sender:    "coordinator",
		ReplyAddr: "127.0.0.1:9000",
		Image:     []byte("fake jpeg bytes"),
		Files:     []string{"a.jpg", "b.jpg"},
	}

	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Type != env.Type || got.CommitID != env.CommitID || got.Sender != env.Sender ||
		got.ReplyAddr != env.ReplyAddr || string(got.Image) != string(env.Image) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, env)
	}
	if got.Checksum == "" {
		t.Fatal("expected Encode to populate Checksum for a non-empty image")
	}
	if !VerifyChecksum(got.Image, got.Checksum) {
		t.Fatal("VerifyChecksum rejected an untampered image")
	}
}

func TestEncodeOmitsChecksumForEmptyImage(t *testing.T) {
	env := Envelope{Type: CommitAck, CommitID: "x.jpg", Sender: "node-a"}
	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Checksum != "" {
		t.Fatalf("expected empty checksum, got %q", got.Checksum)
	}
}

func TestVerifyChecksumDetectsCorruption(t *testing.T) {
	sum := Checksum([]byte("original"))
	if VerifyChecksum([]byte("tampered"), sum) {
		t.Fatal("VerifyChecksum accepted tampered data")
	}
}

func TestVerifyChecksumEmptyWantAlwaysPasses(t *testing.T) {
	if !VerifyChecksum([]byte("anything"), "") {
		t.Fatal("an empty want should mean nothing to verify")
	}
}

func TestMsgTypeString(t *testing.T) {
	tests := []struct {
		t    MsgType
		want string
	}{
		{CommitQuery, "COMMIT_QUERY"},
		{CommitAgreement, "COMMIT_AGREEMENT"},
		{CommitMsg, "COMMIT_MSG"},
		{CommitAck, "COMMIT_ACK"},
		{CommitAbort, "COMMIT_ABORT"},
		{MsgType(99), "UNKNOWN"},
	}
	for _, tc := range tests {
		if got := tc.t.String(); got != tc.want {
			t.Errorf("MsgType(%d).String() = %q, want %q", tc.t, got, tc.want)
		}
	}
}
