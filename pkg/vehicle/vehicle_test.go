package vehicle

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/herlein/gouwb/pkg/position"
	"github.com/herlein/gouwb/pkg/ranging"
)

type recordingDispatcher struct {
	msgs   []Message
	err    error
	closed bool
}

func (r *recordingDispatcher) Dispatch(_ context.Context, msg Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingDispatcher) Close() error {
	r.closed = true
	return r.err
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestTraceFormat(t *testing.T) {
	var buf bytes.Buffer
	trace := NewTrace(&buf)

	trace.HandleDistances(context.Background(), ranging.Pair{Round: 1, B: 1.5, C: 12.3456})
	trace.HandleDistances(context.Background(), ranging.Pair{Round: 2, B: -0.01, C: 0})

	want := "  1.500  12.346\n" +
		" -0.010   0.000\n"
	if buf.String() != want {
		t.Errorf("trace = %q, want %q", buf.String(), want)
	}
}

func TestSteeringDispatchesCommands(t *testing.T) {
	rec := &recordingDispatcher{}
	s := NewSteering(1.0, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	tag := position.Point{X: 0.5, Y: 2}
	pairs := []ranging.Pair{
		{Round: 7, B: tag.Distance(position.Point{}), C: tag.Distance(position.Point{X: 1})},
		{Round: 8, B: 3, C: 2},
	}
	for _, p := range pairs {
		if err := s.HandleDistances(context.Background(), p); err != nil {
			t.Fatalf("HandleDistances() error: %v", err)
		}
	}

	if len(rec.msgs) != 2 {
		t.Fatalf("dispatched %d messages, want 2", len(rec.msgs))
	}
	first := rec.msgs[0]
	if first.Session != s.Session() || first.Session == "" {
		t.Errorf("session = %q, want %q", first.Session, s.Session())
	}
	if first.Seq != 1 || rec.msgs[1].Seq != 2 {
		t.Errorf("seq = %d, %d, want 1, 2", first.Seq, rec.msgs[1].Seq)
	}
	if first.Round != 7 || !first.Time.Equal(fixed) {
		t.Errorf("round/time = %d %v", first.Round, first.Time)
	}
	if d := (position.Point{X: first.X, Y: first.Y}).Distance(tag); d > 1e-9 {
		t.Errorf("position = (%v, %v), want %+v", first.X, first.Y, tag)
	}
	if first.Angular != -position.Angular {
		t.Errorf("equal distances should turn right, got %v", first.Angular)
	}
	if rec.msgs[1].Angular != position.Angular || rec.msgs[1].Linear != position.Linear {
		t.Errorf("B > C should turn left, got %+v", rec.msgs[1])
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := Message{
		Session: "d3b07384-d113-4ec8-98c6-2b1e4f1b1b1b",
		Seq:     42,
		Round:   1000,
		Time:    time.Unix(1700000000, 0),
		X:       0.5,
		Y:       1.25,
		Linear:  position.Linear,
		Angular: -position.Angular,
	}

	if err := WriteFrame(&buf, msg); err != nil {
		t.Fatalf("WriteFrame() error: %v", err)
	}
	if n := binary.BigEndian.Uint32(buf.Bytes()[:4]); int(n) != buf.Len()-4 {
		t.Errorf("length prefix = %d, payload = %d", n, buf.Len()-4)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	if !got.Time.Equal(msg.Time) {
		t.Errorf("time = %v, want %v", got.Time, msg.Time)
	}
	got.Time = msg.Time
	if got != msg {
		t.Errorf("ReadFrame() = %+v, want %+v", got, msg)
	}
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short length", []byte{0x00, 0x01}},
		{"oversized", []byte{0x00, 0x01, 0x00, 0x00}},
		{"truncated payload", []byte{0x00, 0x00, 0x00, 0x08, 0x81}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadFrame(bytes.NewReader(tt.data)); err == nil {
				t.Error("ReadFrame() succeeded on a bad frame")
			}
		})
	}
}

func TestSerialDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewSerialDispatcher(nopCloser{&buf}, nil)

	for i := uint64(1); i <= 3; i++ {
		if err := d.Dispatch(context.Background(), Message{Seq: i}); err != nil {
			t.Fatalf("Dispatch() error: %v", err)
		}
	}
	for i := uint64(1); i <= 3; i++ {
		msg, err := ReadFrame(&buf)
		if err != nil || msg.Seq != i {
			t.Fatalf("frame %d = %+v, %v", i, msg, err)
		}
	}

	d.Close()
	if err := d.Dispatch(context.Background(), Message{}); err == nil {
		t.Error("Dispatch() after Close() should fail")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("link down")
	ok := &recordingDispatcher{}
	bad := &recordingDispatcher{err: boom}
	m := Multi{bad, ok}

	err := m.Dispatch(context.Background(), Message{Seq: 1})
	if !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want %v", err, boom)
	}
	if len(ok.msgs) != 1 {
		t.Error("failing dispatcher stopped the fan-out")
	}
	m.Close()
	if !ok.closed || !bad.closed {
		t.Error("Close() did not reach every dispatcher")
	}
}

func TestFanout(t *testing.T) {
	var buf bytes.Buffer
	rec := &recordingDispatcher{}
	f := Fanout{NewTrace(&buf), NewSteering(1.2, rec, nil)}

	if err := f.HandleDistances(context.Background(), ranging.Pair{B: 1, C: 1}); err != nil {
		t.Fatalf("HandleDistances() error: %v", err)
	}
	if !strings.Contains(buf.String(), "1.000") || len(rec.msgs) != 1 {
		t.Errorf("trace %q, dispatched %d", buf.String(), len(rec.msgs))
	}
}

func TestMQTTDispatchRequiresConnection(t *testing.T) {
	d := NewMQTTDispatcher(MQTTConfig{Broker: "localhost:1883"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := d.Dispatch(context.Background(), Message{}); err == nil {
		t.Fatal("Dispatch() without Connect() should fail")
	}
	if s := d.Stats(); s.Errors != 1 || s.Connected {
		t.Errorf("Stats() = %+v", s)
	}
	if d.cfg.Topic != DefaultTopic {
		t.Errorf("topic = %q, want %q", d.cfg.Topic, DefaultTopic)
	}
}

func TestMQTTConnectKeepsRetryingUnreachableBroker(t *testing.T) {
	d := NewMQTTDispatcher(MQTTConfig{
		Broker:         "127.0.0.1:1",
		ClientID:       "gouwb-test",
		ConnectTimeout: 100 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer d.Close()

	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v, want nil while retrying", err)
	}
	if d.Stats().Connected {
		t.Fatal("Stats().Connected = true without a broker")
	}
	if err := d.Dispatch(context.Background(), Message{}); err == nil {
		t.Error("Dispatch() before the session is up should fail")
	}
}
