package connection

import (
	"errors"
	"fmt"
	"io"
	"net"

	cerr "github.com/saeidalz13/battleship-server/internal/error"
	"github.com/saeidalz13/battleship-server/models/packet"
)

// Reader loop decisions.
const (
	ConnLoopBreak uint8 = iota
	ConnLoopContinue
	ConnLoopDiscard
)

var (
	ErrReadIdle     = errors.New("no packet before read deadline")
	ErrDisconnected = errors.New("client disconnected")
)

type ConnErr struct {
	code uint8
	desc string
}

func NewConnErr(code uint8) ConnErr {
	return ConnErr{code: code}
}

func (c ConnErr) AddDesc(desc string) ConnErr {
	c.desc = desc
	return c
}

func (c ConnErr) Error() string {
	return fmt.Sprintf("Connection error - Code: %d\tdesc: %s", c.code, c.desc)
}

func (c ConnErr) Code() uint8 {
	return c.code
}

// LivenessError names the client that failed a probe.
type LivenessError struct {
	Client uint16
}

func (e *LivenessError) Error() string {
	return cerr.ErrClientUnresponsive(e.Client).Error()
}

func (e *LivenessError) Unwrap() error {
	return cerr.ErrLivenessFailure
}

// onConnErr sorts a read error into what the reader loop should do next.
func onConnErr(err error) ConnErr {
	if errors.Is(err, ErrReadIdle) {
		return NewConnErr(ConnLoopContinue)
	}

	if packet.IsFramingError(err) {
		return NewConnErr(ConnLoopDiscard).AddDesc(err.Error())
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NewConnErr(ConnLoopBreak).AddDesc("peer closed the connection")
	}

	if errors.Is(err, net.ErrClosed) {
		return NewConnErr(ConnLoopBreak).AddDesc("connection closed locally")
	}

	return NewConnErr(ConnLoopBreak).AddDesc("unexpected error: " + err.Error())
}
