package mpc

import (
	"io"
	"testing"

	"mpcten/core/fixedpoint"
)

func pipePair() (*Protocol, *Protocol) {
	aR, aW := io.Pipe()
	bR, bW := io.Pipe()
	return NewProtocol(aR, bW), NewProtocol(bR, aW)
}

func TestProtocolShareMessage(t *testing.T) {
	coord, party := pipePair()
	done := make(chan error, 1)
	go func() {
		done <- coord.SendShare(7, []int{2, 2}, [][]uint64{{1, 2, 3, 4}})
	}()
	msg, err := party.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if msg.Type != MsgShare {
		t.Fatalf("type %d", msg.Type)
	}
	sp := msg.Payload.(SharePayload)
	if sp.ID != 7 || len(sp.Vectors) != 1 || sp.Vectors[0][3] != 4 {
		t.Fatalf("payload %+v", sp)
	}
}

func TestProtocolOpAndRevealMessages(t *testing.T) {
	coord, party := pipePair()
	go func() {
		coord.SendOp(OpPayload{ID: 1, OutID: 2, Kind: OpSumAxes, ReduceAll: true})
		coord.SendReveal(2)
		coord.SendDone()
	}()
	msg, err := party.Receive()
	if err != nil {
		t.Fatal(err)
	}
	op := msg.Payload.(OpPayload)
	if op.Kind != OpSumAxes || !op.ReduceAll {
		t.Fatalf("op %+v", op)
	}
	msg, err = party.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Payload.(RevealPayload).ID != 2 {
		t.Fatalf("reveal %+v", msg.Payload)
	}
	msg, err = party.Receive()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != MsgDone {
		t.Fatalf("type %d", msg.Type)
	}
}

func TestReceiveShareValueError(t *testing.T) {
	coord, party := pipePair()
	go func() {
		party.SendError(io.ErrUnexpectedEOF)
	}()
	if _, err := coord.ReceiveShareValue(); err == nil {
		t.Fatal("expected forwarded party error")
	}
}

func TestMeshCollectAndClose(t *testing.T) {
	codec, err := fixedpoint.NewCodec(fixedpoint.DefaultFracBits)
	if err != nil {
		t.Fatal(err)
	}
	m := newLocalMesh(codec, [][]TruncRole{{TruncLower}, {TruncUpper}})
	if m.Parties() != 2 {
		t.Fatalf("parties %d", m.Parties())
	}
	if err := m.links[0].SendShare(1, []int{2}, [][]uint64{{10, 20}}); err != nil {
		t.Fatal(err)
	}
	if err := m.links[1].SendShare(1, []int{2}, [][]uint64{{30, 40}}); err != nil {
		t.Fatal(err)
	}
	shares, err := m.CollectShares(1)
	if err != nil {
		t.Fatal(err)
	}
	if shares[0][0][1] != 20 || shares[1][0][0] != 30 {
		t.Fatalf("shares %+v", shares)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMeshUnknownTensor(t *testing.T) {
	codec, _ := fixedpoint.NewCodec(fixedpoint.DefaultFracBits)
	m := newLocalMesh(codec, [][]TruncRole{{TruncLower}})
	defer m.Close()
	if _, err := m.CollectShares(99); err == nil {
		t.Fatal("expected unknown tensor error")
	}
}
