package node

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog/log"
)

// Server принимает соединения и отдает каждое отдельной горутине.
// Горутины разделяют только каталог.
type Server struct {
	handler *Handler
	ids     *snowflake.Node
	wg      sync.WaitGroup
}

// NewServer создает сервер. worker задает номер генератора идентификаторов соединений (0..1023).
func NewServer(h *Handler, worker int64) (*Server, error) {
	ids, err := snowflake.NewNode(worker)
	if err != nil {
		return nil, err
	}
	return &Server{handler: h, ids: ids}, nil
}

// Serve принимает соединения до отмены ctx или фатальной ошибки listener'а.
// После отмены ждет завершения уже принятых запросов.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-done:
		}
	}()

	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else if backoff < time.Second {
					backoff *= 2
				}
				log.Warn().Err(err).Dur("retry", backoff).Msg("accept failed")
				time.Sleep(backoff)
				continue
			}
			s.wg.Wait()
			return err
		}
		backoff = 0

		id := s.ids.Generate()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(id, conn)
		}()
	}
}

func (s *Server) serveConn(id snowflake.ID, conn net.Conn) {
	logger := log.With().Str("conn", id.String()).Str("remote", conn.RemoteAddr().String()).Logger()

	start := time.Now()
	err := s.handler.Serve(conn, logger)
	switch {
	case err == nil:
		logger.Debug().Dur("took", time.Since(start)).Msg("request done")
	case isQuiet(err):
		logger.Debug().Err(err).Msg("request done")
	default:
		logger.Error().Err(err).Msg("request failed")
	}
}

// ListenAndServe слушает addr и обслуживает соединения.
// Ошибка bind возвращается сразу.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info().Str("addr", l.Addr().String()).Str("dir", s.handler.Store.Dir()).Msg("storage node listening")
	return s.Serve(ctx, l)
}
