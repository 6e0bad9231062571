package server

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ttdb/internal/dispatch"
	"ttdb/internal/purge"
	"ttdb/internal/session"
	"ttdb/internal/wire"
)

// Server owns the Unix-domain socket endpoint and the process lifetime:
// accept loop, per-connection goroutines, the background purge scheduler,
// and orderly shutdown on SIGINT/SIGTERM.
type Server struct {
	socketPath string
	dispatcher *dispatch.Dispatcher
	scheduler  *purge.Scheduler
	log        *logrus.Entry

	lockFile *os.File
}

// New builds a Server bound to socketPath, not yet listening.
func New(socketPath string, dispatcher *dispatch.Dispatcher, scheduler *purge.Scheduler, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{socketPath: socketPath, dispatcher: dispatcher, scheduler: scheduler, log: log}
}

// Run binds the socket, starts the purge scheduler, and serves connections
// until ctx is cancelled or a fatal transport error occurs. A second
// process attempting to bind the same socketPath fails fast with
// ErrAlreadyRunning rather than silently stealing the endpoint.
func (s *Server) Run(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	lockPath := s.socketPath + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	if err := lockFile(lf); err != nil {
		lf.Close()
		return err
	}
	s.lockFile = lf
	defer func() {
		unlockFile(s.lockFile)
		s.lockFile.Close()
		os.Remove(lockPath)
	}()

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	defer listener.Close()
	defer os.Remove(s.socketPath)

	s.scheduler.Start()
	defer s.scheduler.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		s.log.Debug("shutdown signal received; closing listener")
		return listener.Close()
	})

	g.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			go s.handleConn(conn)
		}
	})

	return g.Wait()
}

// handleConn serves one connection end to end: each frame read is handed
// to the shared Dispatcher, and the reply is written back as-is. On EOF (or
// any read error) the connection's transaction, if any, is dropped without
// touching any other session (spec.md §5 Cancellation).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	id := session.NewID()
	defer s.dispatcher.Forget(id)

	scanner := wire.NewScanner(conn)
	for {
		command, err := scanner.Next()
		if err != nil {
			return
		}
		if command == "" {
			continue
		}
		reply := s.dispatcher.Handle(id, command)
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}
