// Package wire defines the message envelope exchanged between the
// coordinator and its participants (spec section 4.5) and its serialization.
// Fields are opaque to transport: any codec that round-trips them losslessly
// is conformant. This one uses encoding/gob, the same choice laura-db's
// storage layer makes for its own on-disk document format.
package wire

// MsgType enumerates the message kinds in the commit protocol. Values are
// part of the wire format: a peer decoding with a different enum ordering
// would silently misinterpret messages, so this ordering must not change.
type MsgType uint8

const (
	CommitQuery MsgType = iota
	CommitAgreement
	CommitMsg
	CommitAck
	CommitAbort
)

// String returns a human-readable name, used in log lines.
func (t MsgType) String() string {
	switch t {
	case CommitQuery:
		return "COMMIT_QUERY"
	case CommitAgreement:
		return "COMMIT_AGREEMENT"
	case CommitMsg:
		return "COMMIT_MSG"
	case CommitAck:
		return "COMMIT_ACK"
	case CommitAbort:
		return "COMMIT_ABORT"
	default:
		return "UNKNOWN"
	}
}

// Envelope is the wire message. CommitID is the composite file name that
// identifies the commit (spec section 3). Sender is the node id of whoever
// sent the message ("coordinator" on the coordinator's own messages);
// ReplyAddr is the network address the recipient should use to reply,
// since node ids alone are not dialable.
type Envelope struct {
	Type      MsgType
	CommitID  string
	Sender    string
	ReplyAddr string
	Agreement bool
	Image     []byte
	Checksum  string // hex blake2b-256 of Image, set only when Image is non-empty
	Files     []string
}
