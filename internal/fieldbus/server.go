// Package fieldbus exposes the plant's register bank over a
// Modbus-TCP-shaped wire protocol: the MBAP header plus function codes
// 1 (read coils), 2 (read discrete inputs), 3 (read holding
// registers), 4 (read input registers), 5 (write single coil), and 15
// (write multiple coils). No third-party Modbus stack exists among
// the retrieved reference repos, so the wire decoding is hand-rolled
// on top of gnet's event-driven TCP server, the same engine the
// reference fleet uses for its other TCP endpoints.
package fieldbus

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/panjf2000/gnet/v2"

	"github.com/tunnelhill/wtprtu/internal/registers"
	"github.com/tunnelhill/wtprtu/internal/wtplog"
)

const (
	fcReadCoils            = 1
	fcReadDiscreteInputs   = 2
	fcReadHoldingRegisters = 3
	fcReadInputRegisters   = 4
	fcWriteSingleCoil      = 5
	fcWriteMultipleCoils   = 15

	mbapHeaderLen = 7
	coilOn        = 0xFF00
)

// Server is a gnet event handler serving one Modbus-TCP-shaped
// listener backed by a register bank.
type Server struct {
	gnet.BuiltinEventEngine

	addr string
	regs *registers.Map
	log  *wtplog.Logger
}

// New returns a Server that will serve regs once Run is called.
func New(addr string, regs *registers.Map, logger *wtplog.Logger) *Server {
	return &Server{addr: addr, regs: regs, log: logger.Named("fieldbus")}
}

// Run blocks serving Modbus-TCP connections at s.addr until the
// listener is stopped (by the process exiting or a fatal engine
// error).
func (s *Server) Run() error {
	s.log.Infow("fieldbus listening", "addr", s.addr)
	return gnet.Run(s, "tcp://"+s.addr, gnet.WithMulticore(true), gnet.WithReusePort(true))
}

// Stop shuts down the fieldbus listener.
func (s *Server) Stop(ctx context.Context) error {
	return gnet.Stop(ctx, "tcp://"+s.addr)
}

// OnBoot logs engine startup.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.log.Info("fieldbus engine booted")
	return gnet.None
}

// OnOpen attaches a fresh frame-reassembly buffer to the connection.
// c.Next(-1) drains whatever gnet has buffered on each call, so partial
// frames must be held here rather than relied on to reappear later.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	c.SetContext(new(bytes.Buffer))
	return nil, gnet.None
}

// OnTraffic decodes one or more complete Modbus-TCP frames out of the
// connection's reassembly buffer and writes each response in turn.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	chunk, err := c.Next(-1)
	if err != nil {
		s.log.Warnw("fieldbus read error", "err", err)
		return gnet.Close
	}

	buf, _ := c.Context().(*bytes.Buffer)
	if buf == nil {
		buf = new(bytes.Buffer)
		c.SetContext(buf)
	}
	buf.Write(chunk)

	for {
		data := buf.Bytes()
		if len(data) < mbapHeaderLen+1 {
			break
		}
		length := int(binary.BigEndian.Uint16(data[4:6]))
		frameLen := mbapHeaderLen + length - 1
		if len(data) < frameLen {
			break // incomplete frame; wait for more OnTraffic calls
		}
		resp := s.handleFrame(data[:frameLen])
		if resp != nil {
			_, _ = c.Write(resp)
		}
		remaining := append([]byte(nil), data[frameLen:]...)
		buf.Reset()
		buf.Write(remaining)
	}
	return gnet.None
}

// handleFrame decodes and answers a single MBAP-framed PDU.
func (s *Server) handleFrame(frame []byte) []byte {
	transactionID := frame[0:2]
	unitID := frame[6]
	fc := frame[7]
	pdu := frame[8:]

	if unitID != 1 {
		return exceptionResponse(transactionID, unitID, fc, 0x02)
	}

	var payload []byte
	var err error

	switch fc {
	case fcReadCoils:
		payload, err = s.readBits(pdu, s.regs.ReadCoils, registers.NumCoils)
	case fcReadDiscreteInputs:
		payload, err = s.readBits(pdu, s.regs.ReadDiscreteInputs, registers.NumDiscreteInputs)
	case fcReadHoldingRegisters:
		payload, err = s.readRegs(pdu, s.regs.ReadHoldingRegisters, registers.NumHoldingRegisters)
	case fcReadInputRegisters:
		payload, err = s.readRegs(pdu, s.regs.ReadInputRegisters, registers.NumInputRegisters)
	case fcWriteSingleCoil:
		payload, err = s.writeSingleCoil(pdu)
	case fcWriteMultipleCoils:
		payload, err = s.writeMultipleCoils(pdu)
	default:
		err = fmt.Errorf("unsupported function code %d", fc)
	}

	if err != nil {
		return exceptionResponse(transactionID, unitID, fc, 0x02)
	}
	return buildResponse(transactionID, unitID, fc, payload)
}

func (s *Server) readBits(pdu []byte, read func(addr, count int) []bool, bankSize int) ([]byte, error) {
	if len(pdu) < 4 {
		return nil, fmt.Errorf("short read request")
	}
	addr := int(binary.BigEndian.Uint16(pdu[0:2]))
	count := int(binary.BigEndian.Uint16(pdu[2:4]))
	if addr < 0 || count <= 0 || addr+count > bankSize {
		return nil, fmt.Errorf("address range out of bounds")
	}
	bits := read(addr, count)
	byteCount := (count + 7) / 8
	out := make([]byte, 1+byteCount)
	out[0] = byte(byteCount)
	for i, v := range bits {
		if v {
			out[1+i/8] |= 1 << uint(i%8)
		}
	}
	return out, nil
}

func (s *Server) readRegs(pdu []byte, read func(addr, count int) []uint16, bankSize int) ([]byte, error) {
	if len(pdu) < 4 {
		return nil, fmt.Errorf("short read request")
	}
	addr := int(binary.BigEndian.Uint16(pdu[0:2]))
	count := int(binary.BigEndian.Uint16(pdu[2:4]))
	if addr < 0 || count <= 0 || addr+count > bankSize {
		return nil, fmt.Errorf("address range out of bounds")
	}
	vals := read(addr, count)
	out := make([]byte, 1+2*count)
	out[0] = byte(2 * count)
	for i, v := range vals {
		binary.BigEndian.PutUint16(out[1+2*i:3+2*i], v)
	}
	return out, nil
}

func (s *Server) writeSingleCoil(pdu []byte) ([]byte, error) {
	if len(pdu) < 4 {
		return nil, fmt.Errorf("short write request")
	}
	addr := int(binary.BigEndian.Uint16(pdu[0:2]))
	val := binary.BigEndian.Uint16(pdu[2:4])
	if !s.regs.WriteCoil(addr, val == coilOn) {
		return nil, fmt.Errorf("address out of bounds")
	}
	return append([]byte{}, pdu[:4]...), nil
}

func (s *Server) writeMultipleCoils(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return nil, fmt.Errorf("short write request")
	}
	addr := int(binary.BigEndian.Uint16(pdu[0:2]))
	count := int(binary.BigEndian.Uint16(pdu[2:4]))
	byteCount := int(pdu[4])
	if len(pdu) < 5+byteCount || count <= 0 {
		return nil, fmt.Errorf("malformed coil payload")
	}
	vals := make([]bool, count)
	for i := 0; i < count; i++ {
		vals[i] = pdu[5+i/8]&(1<<uint(i%8)) != 0
	}
	if !s.regs.WriteCoils(addr, vals) {
		return nil, fmt.Errorf("address range out of bounds")
	}
	resp := make([]byte, 4)
	binary.BigEndian.PutUint16(resp[0:2], uint16(addr))
	binary.BigEndian.PutUint16(resp[2:4], uint16(count))
	return resp, nil
}

func buildResponse(transactionID []byte, unitID, fc byte, payload []byte) []byte {
	length := 2 + len(payload) // unit id + function code + payload
	out := make([]byte, mbapHeaderLen+1+len(payload))
	copy(out[0:2], transactionID)
	binary.BigEndian.PutUint16(out[4:6], uint16(length))
	out[6] = unitID
	out[7] = fc
	copy(out[8:], payload)
	return out
}

func exceptionResponse(transactionID []byte, unitID, fc byte, exceptionCode byte) []byte {
	out := make([]byte, mbapHeaderLen+2)
	copy(out[0:2], transactionID)
	binary.BigEndian.PutUint16(out[4:6], 3)
	out[6] = unitID
	out[7] = fc | 0x80
	out[8] = exceptionCode
	return out
}
