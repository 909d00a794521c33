package base

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		bufSize int
	}{
		{"empty payload", []byte{}, 64},
		{"fits buffer", []byte(`{"name":"Kopi Susu"}`), 64},
		{"larger than buffer", bytes.Repeat([]byte("x"), 1024), 32},
		{"buffer smaller than header", []byte("abc"), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			errCh := make(chan error, 1)
			go func() {
				errCh <- writeFrame(client, 7, 42, tt.data)
			}()

			shardID, requestID, data, err := readFrame(server, make([]byte, tt.bufSize))
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if err := <-errCh; err != nil {
				t.Fatalf("writeFrame failed: %v", err)
			}

			if shardID != 7 || requestID != 42 {
				t.Errorf("got shard %d request %d, want 7 and 42", shardID, requestID)
			}
			if !bytes.Equal(data, tt.data) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(data), len(tt.data))
			}
		})
	}
}

func TestReadFrameShortPayload(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], 1)
	binary.BigEndian.PutUint64(header[8:16], 2)
	binary.BigEndian.PutUint32(header[16:20], 10)

	r := bytes.NewReader(append(header, []byte("short")...))
	_, _, _, err := readFrame(r, make([]byte, 64))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, _, _, err := readFrame(bytes.NewReader(nil), make([]byte, 64))
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[16:20], maxFrameSize+1)

	if _, _, _, err := readFrame(bytes.NewReader(header), make([]byte, 64)); err == nil {
		t.Error("expected an error for an oversized frame")
	}
}
