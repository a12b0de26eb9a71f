// Package webdav shares the data directory (config, last state and
// recordings) so they can be pulled off the robot without a shell.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/webdav"

	"armor-exposure/pkg/utils"
)

type Share struct {
	port    int
	handler *webdav.Handler
	logger  *zap.SugaredLogger

	lock sync.Mutex
	srv  *http.Server
	addr string
}

func New(port int, dir string) *Share {
	logger := utils.GetLogger()
	return &Share{
		port:   port,
		logger: logger,
		handler: &webdav.Handler{
			FileSystem: webdav.Dir(dir),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					logger.Errorf("WEBDAV [%s]: %s, err: %s", r.Method, r.URL, err)
				}
			},
		},
	}
}

// Start begins serving and returns the listen address. Starting a running
// share returns its current address.
func (s *Share) Start() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.srv != nil {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return "", err
	}
	srv := &http.Server{Handler: s.handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("webdav server err: %s", err)
		}
	}()
	s.srv = srv
	s.addr = ln.Addr().String()
	s.logger.Infof("webdav serving on %s", s.addr)

	return s.addr, nil
}

// Stop shuts the share down. Stopping a stopped share is a no-op.
func (s *Share) Stop() error {
	s.lock.Lock()
	srv := s.srv
	s.srv = nil
	s.addr = ""
	s.lock.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Share) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.srv != nil
}
