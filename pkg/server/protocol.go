// Package server implements the line-oriented wire protocol (§6) on top of
// the ioruntime primitives and an *engine.Engine: request classification,
// response encoding, and the per-connection task the accept loop spawns.
package server

import (
	"regexp"

	"github.com/dd0wney/redka/pkg/record"
)

// MaxFrameSize is the largest request frame the protocol accepts in one
// read_some, per §6's "up to 1024 bytes per frame".
const MaxFrameSize = 1024

// Status bytes, sent verbatim with no trailing newline (§6).
const (
	StatusNone = '0' // RDKAnone: unknown id on read.
	StatusBad  = '1' // RDKAbad: malformed request frame or unparseable id.
	StatusErr  = '2' // RDXbad: parsed structurally, downstream validation failed.
)

// Kind classifies a request frame.
type Kind int

const (
	KindMalformed Kind = iota
	KindCreate
	KindUpdate
	KindRead
)

// Request is a classified, parsed request frame.
type Request struct {
	Kind   Kind
	ID     string
	Fields record.Record
}

// canonicalUUID matches a 36-byte UUID in canonical 8-4-4-4-12 hex form, the
// only shape §6 accepts for a bare read request or an update's id.
var canonicalUUID = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ClassifyRequest parses one request frame per §6:
//
//	{<record>}       -> create
//	{@<id> <record>} -> update
//	<bare-uuid>       -> read
//
// Anything else, including an unbalanced brace or a malformed id, is
// KindMalformed.
func ClassifyRequest(frame []byte) Request {
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return Request{Kind: KindMalformed}
	}

	if frame[0] == '{' {
		if frame[len(frame)-1] != '}' {
			return Request{Kind: KindMalformed}
		}

		inner := frame[1 : len(frame)-1]
		if len(inner) > 0 && inner[0] == '@' {
			id, fields, ok := record.ParseKeyed(frame)
			if !ok || !canonicalUUID.MatchString(id) {
				return Request{Kind: KindMalformed}
			}
			return Request{Kind: KindUpdate, ID: id, Fields: fields}
		}

		return Request{Kind: KindCreate, Fields: record.Parse(inner)}
	}

	if canonicalUUID.Match(frame) {
		return Request{Kind: KindRead, ID: string(frame)}
	}

	return Request{Kind: KindMalformed}
}
