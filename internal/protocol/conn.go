package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Gammanik/dfs/internal/dfserr"
)

// Timeouts задает ограничения на операции с соединением
type Timeouts struct {
	Response time.Duration // ожидание строки заголовка
	Payload  time.Duration // чтение или запись тела чанка целиком
}

// DefaultTimeouts значения по умолчанию
var DefaultTimeouts = Timeouts{
	Response: DefaultResponseTimeout,
	Payload:  DefaultPayloadTimeout,
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Response <= 0 {
		t.Response = DefaultResponseTimeout
	}
	if t.Payload <= 0 {
		t.Payload = DefaultPayloadTimeout
	}
	return t
}

// Conn соединение с общим буфером для строк и бинарных данных.
// Строки читаются до \n, тела чанков читаются ровно по заявленной длине.
type Conn struct {
	conn     net.Conn
	r        *bufio.Reader
	timeouts Timeouts
}

// NewConn оборачивает сетевое соединение
func NewConn(c net.Conn, t Timeouts) *Conn {
	return &Conn{
		conn:     c,
		r:        bufio.NewReaderSize(c, MaxLineLength),
		timeouts: t.withDefaults(),
	}
}

// Close закрывает соединение
func (c *Conn) Close() error {
	return c.conn.Close()
}

// ReadLine читает одну строку без завершающего \n (и \r).
// Последняя строка без \n перед закрытием соединения тоже возвращается;
// io.EOF возвращается только когда данных больше нет.
func (c *Conn) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeouts.Response)); err != nil {
		return "", dfserr.FromNet("set read deadline", err)
	}

	line, err := c.r.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		return "", dfserr.Protocolf("read line", "line exceeds %d bytes", MaxLineLength)
	case errors.Is(err, io.EOF):
		if len(line) == 0 {
			return "", io.EOF
		}
	default:
		return "", dfserr.FromNet("read line", err)
	}

	line = bytes.TrimRight(line, "\r\n")
	return string(line), nil
}

// Payload возвращает ограниченный reader на следующие n байт тела.
// Дедлайн выставляется один раз на все тело.
func (c *Conn) Payload(n int64) (io.Reader, error) {
	if err := c.payloadDeadline(); err != nil {
		return nil, err
	}
	return &payloadReader{r: io.LimitReader(c.r, n), want: n}, nil
}

// WriteString пишет строку протокола
func (c *Conn) WriteString(s string) error {
	return c.Write([]byte(s))
}

// WriteLinef пишет отформатированную строку, добавляя \n
func (c *Conn) WriteLinef(format string, args ...interface{}) error {
	return c.WriteString(fmt.Sprintf(format, args...) + "\n")
}

// Write пишет данные целиком с дедлайном на тело
func (c *Conn) Write(p []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.Payload)); err != nil {
		return dfserr.FromNet("set write deadline", err)
	}
	if _, err := c.conn.Write(p); err != nil {
		return dfserr.FromNet("write", err)
	}
	return nil
}

// WriteFrom копирует ровно n байт из r в соединение
func (c *Conn) WriteFrom(r io.Reader, n int64) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeouts.Payload)); err != nil {
		return dfserr.FromNet("set write deadline", err)
	}
	copied, err := io.CopyN(c.conn, r, n)
	if err != nil {
		if copied < n && errors.Is(err, io.EOF) {
			return dfserr.New(dfserr.ErrIO, "write payload", fmt.Errorf("source ended after %d of %d bytes", copied, n))
		}
		return dfserr.FromNet("write payload", err)
	}
	return nil
}

func (c *Conn) payloadDeadline() error {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeouts.Payload)); err != nil {
		return dfserr.FromNet("set read deadline", err)
	}
	return nil
}

func payloadErr(err error, n int64) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return dfserr.New(dfserr.ErrConnection, "read payload", fmt.Errorf("connection closed before %d bytes were received", n))
	}
	return dfserr.FromNet("read payload", err)
}

// payloadReader превращает преждевременный EOF в ошибку соединения
type payloadReader struct {
	r    io.Reader
	want int64
	got  int64
}

func (p *payloadReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.got += int64(n)
	if errors.Is(err, io.EOF) && p.got < p.want {
		return n, payloadErr(err, p.want)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, dfserr.FromNet("read payload", err)
	}
	return n, err
}
