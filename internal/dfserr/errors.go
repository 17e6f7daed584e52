// Package dfserr описывает классы ошибок, общие для узлов хранения и координатора.
package dfserr

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// Классы ошибок. Сравниваются через errors.Is.
var (
	ErrConnection     = errors.New("connection error")
	ErrTimedOut       = errors.New("timed out")
	ErrProtocol       = errors.New("protocol error")
	ErrIncompleteData = errors.New("incomplete data")
	ErrNotFound       = errors.New("not found")
	ErrIO             = errors.New("io error")
)

// Error связывает класс ошибки с операцией и исходной причиной
type Error struct {
	Kind error  // один из Err* выше
	Op   string // что делали, например "get a.txt from 127.0.0.1:10001"
	Err  error  // причина, может быть nil
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.Error()
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap отдает и класс, и причину, чтобы errors.Is работал для обоих
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New создает ошибку заданного класса
func New(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Protocolf создает ошибку протокола с форматированным описанием
func Protocolf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrProtocol, Op: op, Err: fmt.Errorf(format, args...)}
}

// FromNet классифицирует ошибку сетевого ввода-вывода.
// Истекший дедлайн превращается в ErrTimedOut, все остальное в ErrConnection.
func FromNet(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: ErrTimedOut, Op: op, Err: err}
	}
	return &Error{Kind: ErrConnection, Op: op, Err: err}
}
