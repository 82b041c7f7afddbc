// Low-level byte-level reader over the record file, the heartbeat index
// file, and the four sidecar descriptor files: positioned fixed-width
// little-endian reads with explicit typed helpers.
package pipedb

import (
	"encoding/binary"
	"io"
	"os"
)

// stream is a positioned reader over a single on-disk file, with support
// for detecting and following growth (the writer may still be appending).
type stream struct {
	path string
	f    *os.File
	pos  int64
}

// openStream opens path for reading. It fails with KindCorruptOrEmpty if
// the file is absent or zero-size, per spec.md §4.1.
func openStream(path string) (*stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrap("open stream", KindCorruptOrEmpty, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrap("open stream", KindIO, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, wrap("open stream", KindCorruptOrEmpty, nil)
	}
	return &stream{path: path, f: f}, nil
}

// size returns the current byte size of the file via a stat query.
func (s *stream) size() (int64, error) {
	info, err := s.f.Stat()
	if err != nil {
		return 0, wrap("stat", KindIO, err)
	}
	return info.Size(), nil
}

// tell returns the stream's current logical read position.
func (s *stream) tell() int64 { return s.pos }

// seek moves to an absolute byte offset.
func (s *stream) seek(offset int64) error {
	if _, err := s.f.Seek(offset, io.SeekStart); err != nil {
		return wrap("seek", KindIO, err)
	}
	s.pos = offset
	return nil
}

// seekRelative moves by delta bytes from the current position. Used to
// skip a truncated annotation's remaining payload (spec.md §4.3).
func (s *stream) seekRelative(delta int64) error {
	return s.seek(s.pos + delta)
}

// readRaw reads exactly len(buf) bytes into buf, advancing pos. A short
// read fails with KindCorruptOrTruncated — the caller was expecting a
// fixed-width field or a declared-length payload.
func (s *stream) readRaw(buf []byte) error {
	n, err := io.ReadFull(s.f, buf)
	s.pos += int64(n)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return wrap("read", KindCorruptOrTruncated, err)
	}
	if err != nil {
		return wrap("read", KindIO, err)
	}
	return nil
}

func (s *stream) readUint16() (uint16, error) {
	var b [2]byte
	if err := s.readRaw(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (s *stream) readUint32() (uint32, error) {
	var b [4]byte
	if err := s.readRaw(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (s *stream) readUint64() (uint64, error) {
	var b [8]byte
	if err := s.readRaw(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// readUintN reads n (1-8) little-endian bytes into a zero-initialized
// 64-bit accumulator, per spec.md §4.3 step 3 ("read exactly field_sizes[i]
// bytes into a 64-bit zero-initialized accumulator").
func (s *stream) readUintN(n int) (uint64, error) {
	if n < 0 || n > 8 {
		return 0, wrap("read uint", KindCorruptOrTruncated, nil)
	}
	var buf [8]byte
	if err := s.readRaw(buf[:n]); err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v, nil
}

// reopen closes and reopens the underlying handle, preserving the last
// read position. Used when the record or index file has grown and the
// stream must see the new tail (spec.md §3.2, §4.5).
func (s *stream) reopen() error {
	pos := s.pos
	if s.f != nil {
		s.f.Close()
	}
	f, err := os.Open(s.path)
	if err != nil {
		return wrap("reopen", KindIO, err)
	}
	s.f = f
	s.pos = 0
	return s.seek(pos)
}

func (s *stream) close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
