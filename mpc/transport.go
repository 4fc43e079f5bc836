// Package mpc provides protocol-switchable secure tensor backends. A
// Backend secret-shares plaintext tensors, evaluates linear reductions
// and public-constant scaling on the shares, and reveals results back to
// plaintext. Protocols are explicit values opened by name, never
// process-wide state.
package mpc

import (
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	// Register types for gob encoding
	gob.Register(SharePayload{})
	gob.Register(OpPayload{})
	gob.Register(RevealPayload{})
	gob.Register(ShareValuePayload{})
}

// MessageType defines message types for the share-exchange protocol
type MessageType int

const (
	MsgShare MessageType = iota
	MsgOp
	MsgReveal
	MsgShareValue
	MsgDone
	MsgError
)

// OpKind selects the share-local operation a party applies.
type OpKind int

const (
	// OpSumAxes folds axes of the stored share by ring addition.
	OpSumAxes OpKind = iota
	// OpScaleTrunc multiplies by a ring constant and truncates the extra
	// fractional bits, each vector by its party's truncation role. Only
	// sound when exactly two share vectors are nonzero.
	OpScaleTrunc
	// OpScaleMul multiplies by a ring constant without truncating; the
	// coordinator accounts for the extra fractional bits at reveal.
	OpScaleMul
)

// Message represents a message in the share-exchange protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// SharePayload distributes the share vectors one party holds for a
// secure tensor.
type SharePayload struct {
	ID      uint64
	Shape   []int
	Vectors [][]uint64
}

// OpPayload instructs a party to derive a new stored share from an
// existing one. For OpSumAxes the Axes/ReduceAll fields carry the axis
// spec; for OpScaleTrunc, Factor is the ring-encoded public constant.
type OpPayload struct {
	ID        uint64
	OutID     uint64
	Kind      OpKind
	ReduceAll bool
	Axes      []int
	Factor    uint64
}

// RevealPayload asks a party to send back its share vectors for a tensor.
type RevealPayload struct {
	ID uint64
}

// ShareValuePayload is a party's response to a reveal request.
type ShareValuePayload struct {
	ID      uint64
	Party   int
	Vectors [][]uint64
}

// Protocol handles one direction-pair of the share-exchange wire format.
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	return &Protocol{
		encoder: gob.NewEncoder(w),
		decoder: gob.NewDecoder(r),
	}
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendShare distributes share vectors for a new secure tensor.
func (p *Protocol) SendShare(id uint64, shape []int, vectors [][]uint64) error {
	return p.Send(&Message{
		Type: MsgShare,
		Payload: SharePayload{
			ID:      id,
			Shape:   shape,
			Vectors: vectors,
		},
	})
}

// SendOp instructs the party to apply a share-local operation.
func (p *Protocol) SendOp(op OpPayload) error {
	return p.Send(&Message{Type: MsgOp, Payload: op})
}

// SendReveal requests the party's share vectors for a tensor.
func (p *Protocol) SendReveal(id uint64) error {
	return p.Send(&Message{Type: MsgReveal, Payload: RevealPayload{ID: id}})
}

// SendDone signals the party to shut down.
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// ReceiveShareValue receives a party's reveal response.
func (p *Protocol) ReceiveShareValue() (*ShareValuePayload, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type == MsgError {
		return nil, fmt.Errorf("party error: %v", msg.Payload)
	}
	if msg.Type != MsgShareValue {
		return nil, fmt.Errorf("expected share value message, got %d", msg.Type)
	}
	payload, ok := msg.Payload.(ShareValuePayload)
	if !ok {
		return nil, fmt.Errorf("invalid share value payload type")
	}
	return &payload, nil
}
