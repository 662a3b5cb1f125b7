package lang

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DebuggerPort is the fixed loopback port the debug server binds and the
// debug client dials, per spec.md §4.E / §6.
const DebuggerPort = 38100

// DebugRecord is a serialized instruction snapshot plus a termination
// flag, per spec.md's DebugRecord data model. Instr is nil on the final
// termination record.
type DebugRecord struct {
	Instr     *Instruction
	Terminate bool
}

// WriteDebugRecord writes one length-prefixed frame: a big-endian uint32
// byte count followed by the little-endian-encoded payload, per
// spec.md §6.
func WriteDebugRecord(w io.Writer, rec DebugRecord) error {
	payload := encodeDebugRecord(rec)
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadDebugRecord reads one length-prefixed frame written by
// WriteDebugRecord.
func ReadDebugRecord(r io.Reader) (DebugRecord, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return DebugRecord{}, err
	}
	length := binary.BigEndian.Uint32(lenPrefix[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return DebugRecord{}, err
	}
	return decodeDebugRecord(payload)
}

func encodeDebugRecord(rec DebugRecord) []byte {
	buf := make([]byte, 0, 32)
	buf = append(buf, boolByte(rec.Terminate))

	if rec.Instr == nil {
		return append(buf, 0) // presence flag: absent
	}
	buf = append(buf, 1) // presence flag: present

	instr := rec.Instr
	var u32 [4]byte

	binary.LittleEndian.PutUint32(u32[:], instr.Pos)
	buf = append(buf, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], instr.Line)
	buf = append(buf, u32[:]...)

	valueBytes := []byte(instr.Value)
	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(len(valueBytes)))
	buf = append(buf, u64[:]...)
	buf = append(buf, valueBytes...)

	buf = append(buf, byte(instr.Opcode))

	if instr.Argument == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		binary.LittleEndian.PutUint32(u32[:], *instr.Argument)
		buf = append(buf, u32[:]...)
	}

	buf = append(buf, boolByte(instr.Optimized))
	return buf
}

func decodeDebugRecord(payload []byte) (DebugRecord, error) {
	r := &byteReader{buf: payload}

	terminate, err := r.readBool()
	if err != nil {
		return DebugRecord{}, err
	}

	present, err := r.readByte()
	if err != nil {
		return DebugRecord{}, err
	}
	if present == 0 {
		return DebugRecord{Terminate: terminate}, nil
	}

	var instr Instruction
	if instr.Pos, err = r.readU32(); err != nil {
		return DebugRecord{}, err
	}
	if instr.Line, err = r.readU32(); err != nil {
		return DebugRecord{}, err
	}

	valueLen, err := r.readU64()
	if err != nil {
		return DebugRecord{}, err
	}
	valueBytes, err := r.readN(int(valueLen))
	if err != nil {
		return DebugRecord{}, err
	}
	instr.Value = string(valueBytes)

	opByte, err := r.readByte()
	if err != nil {
		return DebugRecord{}, err
	}
	instr.Opcode = Opcode(opByte)

	hasArg, err := r.readByte()
	if err != nil {
		return DebugRecord{}, err
	}
	if hasArg != 0 {
		v, err := r.readU32()
		if err != nil {
			return DebugRecord{}, err
		}
		instr.Argument = arg(v)
	}

	if instr.Optimized, err = r.readBool(); err != nil {
		return DebugRecord{}, err
	}

	return DebugRecord{Instr: &instr, Terminate: terminate}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// byteReader is a minimal cursor over a decoded payload; the wire format
// is small and fixed-shape enough that a hand-rolled cursor is simpler
// than wrapping bytes.Reader + binary.Read reflection for each field.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readBool() (bool, error) {
	b, err := r.readByte()
	return b != 0, err
}

func (r *byteReader) readN(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) readU32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) readU64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// DebugServer binds the loopback debugger port and, once a client has
// attached, forwards one DebugRecord per dispatched instruction
// synchronously. Per spec.md §4.E/§5: exactly one client is accepted
// before the VM begins executing, and a write failure silently detaches
// the debugger without stopping the VM.
type DebugServer struct {
	listener  *net.TCPListener
	conn      net.Conn
	sessionID string
	logger    *logrus.Logger
}

// NewDebugServer constructs a DebugServer that logs through logger (or a
// package default if nil).
func NewDebugServer(logger *logrus.Logger) *DebugServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DebugServer{logger: logger}
}

// BindAndAccept binds 127.0.0.1:DebuggerPort and blocks up to timeout for
// one client to connect. It reports whether a client attached; on
// timeout or bind failure the VM proceeds with the debugger detached.
func (s *DebugServer) BindAndAccept(timeout time.Duration) bool {
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DebuggerPort}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		s.logger.WithError(err).Warn("debug server: bind failed, running undebugged")
		return false
	}
	s.listener = ln

	if err := ln.SetDeadline(time.Now().Add(timeout)); err != nil {
		s.logger.WithError(err).Warn("debug server: could not set accept deadline")
	}

	conn, err := ln.Accept()
	if err != nil {
		s.logger.WithError(err).Info("debug server: no client attached before timeout")
		ln.Close()
		s.listener = nil
		return false
	}

	s.conn = conn
	s.sessionID = uuid.New().String()
	s.logger.WithFields(logrus.Fields{
		"session": s.sessionID,
		"remote":  conn.RemoteAddr().String(),
	}).Info("debug server: client attached")
	return true
}

// Send forwards rec to the attached client. It reports whether the send
// succeeded; callers must detach the debugger on false.
func (s *DebugServer) Send(rec DebugRecord) bool {
	if s.conn == nil {
		return false
	}
	if err := WriteDebugRecord(s.conn, rec); err != nil {
		s.logger.WithFields(logrus.Fields{
			"session": s.sessionID,
			"error":   err,
		}).Warn("debug server: send failed, detaching")
		return false
	}
	return true
}

// Close sends the final termination record (best effort) and closes the
// connection and listener.
func (s *DebugServer) Close() {
	if s.conn != nil {
		_ = WriteDebugRecord(s.conn, DebugRecord{Terminate: true})
		s.conn.Close()
		s.conn = nil
	}
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
}

// DialDebugClient connects to the debug server at 127.0.0.1:DebuggerPort,
// per spec.md §6's CLI surface for neodbg.
func DialDebugClient() (net.Conn, error) {
	return net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", DebuggerPort), 5*time.Second)
}
