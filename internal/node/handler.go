package node

import (
	"errors"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/protocol"
)

// Handler обслуживает одно соединение: читает команду, выполняет ее и закрывает соединение
type Handler struct {
	Store    *Store
	Timeouts protocol.Timeouts
	// Ack включает ответ OK/ERROR на put. По умолчанию узел молчит,
	// и об ошибке отправитель узнает только по разрыву соединения.
	Ack bool
}

// Serve обрабатывает ровно один запрос и закрывает c
func (h *Handler) Serve(c net.Conn, logger zerolog.Logger) error {
	conn := protocol.NewConn(c, h.Timeouts)
	defer conn.Close()

	line, err := conn.ReadLine()
	if err != nil {
		return dfserr.FromNet("read command", err)
	}

	req, err := protocol.ParseRequest(line)
	if err != nil {
		if h.Ack && strings.HasPrefix(strings.ToLower(line), protocol.CmdPut) {
			conn.WriteLinef("%s %v", protocol.AckError, err)
		}
		return err
	}

	logger.Debug().Str("cmd", req.Cmd).Str("file", req.Name).Msg("request")

	switch req.Cmd {
	case protocol.CmdList:
		return h.handleList(conn)
	case protocol.CmdPut:
		return h.handlePut(conn, req, logger)
	default:
		return h.handleGet(conn, req, logger)
	}
}

func (h *Handler) handleList(conn *protocol.Conn) error {
	names, err := h.Store.List()
	if err != nil {
		return err
	}

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return nil
	}
	return conn.WriteString(b.String())
}

func (h *Handler) handlePut(conn *protocol.Conn, req protocol.Request, logger zerolog.Logger) error {
	payload, err := conn.Payload(req.Size)
	if err == nil {
		err = h.Store.Put(req.Name, req.Index, payload, req.Size)
	}

	if err != nil {
		if h.Ack {
			conn.WriteLinef("%s %v", protocol.AckError, err)
		}
		return err
	}

	logger.Info().Str("file", req.Name).Int("chunk", req.Index).Int64("size", req.Size).Msg("chunk stored")
	if h.Ack {
		return conn.WriteLinef(protocol.AckOK)
	}
	return nil
}

func (h *Handler) handleGet(conn *protocol.Conn, req protocol.Request, logger zerolog.Logger) error {
	chunks, err := h.Store.Chunks(req.Name)
	if err != nil {
		conn.WriteLinef("%s cannot read directory", protocol.AckError)
		return err
	}

	sent := 0
	for _, c := range chunks {
		f, size, err := h.Store.Open(c)
		if err != nil {
			// чанк мог исчезнуть между чтением каталога и открытием
			logger.Warn().Err(err).Str("path", c.Path).Msg("skipping chunk")
			continue
		}

		err = conn.WriteString(protocol.ChunkHeader{Index: c.Index, Size: size}.String())
		if err == nil {
			err = conn.WriteFrom(f, size)
		}
		f.Close()
		if err != nil {
			return err
		}

		logger.Debug().Str("file", req.Name).Int("chunk", c.Index).Int64("size", size).Msg("chunk sent")
		sent++
	}

	if sent == 0 {
		if err := conn.WriteLinef(protocol.MarkerNotFound); err != nil {
			return err
		}
		return dfserr.New(dfserr.ErrNotFound, "get "+req.Name, nil)
	}
	return conn.WriteLinef(protocol.MarkerEnd)
}

// isQuiet сообщает, что ошибку не нужно поднимать выше debug
func isQuiet(err error) bool {
	return errors.Is(err, dfserr.ErrNotFound)
}
