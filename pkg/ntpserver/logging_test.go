package ntpserver

import (
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestPacketMarshaler(t *testing.T) {
	p := samplePacket()
	enc := zapcore.NewMapObjectEncoder()
	if err := (packetMarshaler{Pkt: &p}).MarshalLogObject(enc); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if enc.Fields["vn"] != uint8(4) || enc.Fields["precision"] != int8(-20) {
		t.Fatalf("fields: got=%v", enc.Fields)
	}
	tx, ok := enc.Fields["transmit"].(map[string]interface{})
	if !ok {
		t.Fatalf("transmit: got=%T", enc.Fields["transmit"])
	}
	if tx["seconds"] != uint32(0x77777777) || tx["fraction"] != uint32(0x88888888) {
		t.Fatalf("transmit fields: got=%v", tx)
	}
}

func TestFormatTimestamp_Microseconds(t *testing.T) {
	tm := time.Date(2020, 3, 1, 10, 20, 30, 123_456_789, time.UTC)
	got := formatTimestamp(TimestampFromTime(tm))
	want := tm.Local().Format("2006-01-02_15:04:05.000000")
	if got != want {
		t.Fatalf("format: got=%q want=%q", got, want)
	}
}
