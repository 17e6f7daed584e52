// Package storage содержит клиент узлов хранения. Каждый запрос идет по отдельному соединению.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/protocol"
)

// ChunkFunc получает очередной чанк из ответа на get.
// Недочитанный остаток r клиент пропускает сам, чтобы поток оставался выровненным.
type ChunkFunc func(index int, size int64, r io.Reader) error

// Client интерфейс для взаимодействия с серверами хранения
type Client interface {
	// PutChunk загружает чанк на указанный сервер хранения
	PutChunk(ctx context.Context, addr, name string, index int, data []byte) error

	// GetChunks запрашивает все чанки файла, которые есть на сервере
	GetChunks(ctx context.Context, addr, name string, fn ChunkFunc) error

	// List возвращает записи каталога сервера
	List(ctx context.Context, addr string) ([]string, error)
}

// TCPClient реализация Client поверх протокола узлов
type TCPClient struct {
	DialTimeout time.Duration
	Timeouts    protocol.Timeouts
	// Ack ждет OK/ERROR после put. Узел должен быть запущен с тем же режимом.
	Ack bool
}

// New создает клиент с таймаутами по умолчанию
func New() *TCPClient {
	return &TCPClient{
		DialTimeout: protocol.DefaultResponseTimeout,
		Timeouts:    protocol.DefaultTimeouts,
	}
}

func (c *TCPClient) dial(ctx context.Context, addr string) (*protocol.Conn, error) {
	d := net.Dialer{Timeout: c.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, dfserr.FromNet("connect "+addr, err)
	}
	return protocol.NewConn(nc, c.Timeouts), nil
}

// PutChunk загружает чанк на указанный сервер хранения
func (c *TCPClient) PutChunk(ctx context.Context, addr, name string, index int, data []byte) error {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := protocol.Request{Cmd: protocol.CmdPut, Name: name, Index: index, Size: int64(len(data))}
	if err := conn.WriteString(req.Header()); err != nil {
		return err
	}
	if err := conn.WriteFrom(bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}

	if !c.Ack {
		return nil
	}

	line, err := conn.ReadLine()
	if err == io.EOF {
		return dfserr.New(dfserr.ErrConnection, "put ack", io.ErrUnexpectedEOF)
	}
	if err != nil {
		return err
	}
	return protocol.ParseAck(line)
}

// GetChunks запрашивает все чанки файла, которые есть на сервере.
// Возвращает ErrNotFound, если узел ответил FILE_NOT_FOUND.
func (c *TCPClient) GetChunks(ctx context.Context, addr, name string, fn ChunkFunc) error {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteString(protocol.Request{Cmd: protocol.CmdGet, Name: name}.Header()); err != nil {
		return err
	}

	for {
		line, err := conn.ReadLine()
		if err == io.EOF {
			return dfserr.Protocolf("get "+name, "connection closed before %s", protocol.MarkerEnd)
		}
		if err != nil {
			return err
		}

		kind, h, err := protocol.ParseReply(line)
		if err != nil {
			return err
		}

		switch kind {
		case protocol.ReplyEnd:
			return nil
		case protocol.ReplyNotFound:
			return dfserr.New(dfserr.ErrNotFound, "get "+name+" from "+addr, nil)
		}

		payload, err := conn.Payload(h.Size)
		if err != nil {
			return err
		}
		ferr := fn(h.Index, h.Size, payload)
		// остаток тела читаем в любом случае
		if _, err := io.Copy(io.Discard, payload); err != nil {
			return err
		}
		if ferr != nil {
			return ferr
		}
	}
}

// List возвращает записи каталога сервера
func (c *TCPClient) List(ctx context.Context, addr string) ([]string, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.WriteString(protocol.Request{Cmd: protocol.CmdList}.Header()); err != nil {
		return nil, err
	}

	var entries []string
	for {
		line, err := conn.ReadLine()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
}
