package object

import (
	"encoding/binary"
	"errors"
	"testing"

	binpkg "github.com/robert-malhotra/go-nwbconv/internal/binary"
	"github.com/robert-malhotra/go-nwbconv/internal/message"
)

var cfg = binpkg.DefaultConfig()

func TestEncodeRead(t *testing.T) {
	msgs := []message.Message{
		message.NewLinkInfo(),
		&message.GroupInfo{},
		message.NewHardLink("acquisition", 0x200),
		message.NewHardLink("general", 0x300),
	}
	raw, err := Encode(msgs, cfg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var buf binpkg.Buffer
	buf.WriteAt(raw, 100)
	h, err := Read(binpkg.NewReader(&buf, cfg), 100)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(h.Messages) != 4 {
		t.Fatalf("decoded %d messages, want 4", len(h.Messages))
	}
	links := h.FindAll(message.TypeLink)
	if len(links) != 2 || links[1].(*message.Link).Name != "general" {
		t.Errorf("links = %+v", links)
	}
	if h.Find(message.TypeDataLayout) != nil {
		t.Error("Find returned a message that is not there")
	}
}

func TestLargeHeaderUsesWideSizeField(t *testing.T) {
	var msgs []message.Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, message.NewHardLink("a_rather_long_link_name_for_padding", uint64(i)))
	}
	raw, err := Encode(msgs, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if raw[5]&0x03 != 1 {
		t.Errorf("flags = 0x%x, want a 2-byte chunk size field", raw[5])
	}
	var buf binpkg.Buffer
	buf.WriteAt(raw, 0)
	h, err := Read(binpkg.NewReader(&buf, cfg), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Messages) != 40 {
		t.Errorf("decoded %d messages", len(h.Messages))
	}
}

func TestChecksumMismatch(t *testing.T) {
	raw, err := Encode([]message.Message{&message.GroupInfo{}}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-6] ^= 0x01
	var buf binpkg.Buffer
	buf.WriteAt(raw, 0)
	if _, err := Read(binpkg.NewReader(&buf, cfg), 0); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

func TestContinuation(t *testing.T) {
	// continuation block: OCHK + one link message + checksum
	link, err := message.Bytes(message.NewHardLink("units", 0x900), cfg)
	if err != nil {
		t.Fatal(err)
	}
	blk := append([]byte("OCHK"), uint8(message.TypeLink))
	blk = binary.LittleEndian.AppendUint16(blk, uint16(len(link)))
	blk = append(blk, 0)
	blk = append(blk, link...)
	blk = binary.LittleEndian.AppendUint32(blk, binpkg.Lookup3Checksum(blk))

	const contAddr = 1000
	head, err := Encode([]message.Message{
		&message.GroupInfo{},
		&message.Continuation{Offset: contAddr, Length: uint64(len(blk))},
	}, cfg)
	if err != nil {
		t.Fatal(err)
	}

	var buf binpkg.Buffer
	buf.WriteAt(head, 0)
	buf.WriteAt(blk, contAddr)
	h, err := Read(binpkg.NewReader(&buf, cfg), 0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	l, ok := h.Find(message.TypeLink).(*message.Link)
	if !ok || l.Name != "units" || l.Address != 0x900 {
		t.Errorf("continuation link = %+v", h.Find(message.TypeLink))
	}
}

func TestBadSignature(t *testing.T) {
	var buf binpkg.Buffer
	buf.WriteAt([]byte("XXXXXXXXXXXXXXXX"), 0)
	if _, err := Read(binpkg.NewReader(&buf, cfg), 0); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}
