package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	hertz "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/df-mc/tileworld/server/view"
	"github.com/df-mc/tileworld/server/world"
)

// Server owns a World with a single observer, optionally exposed over HTTP.
type Server struct {
	conf Config

	w        *world.World
	observer *world.Loader
	http     *hertz.Hertz

	once    sync.Once
	running sync.WaitGroup
}

// New creates a Server using the Config conf. The World is created right
// away; the HTTP view is started by Listen. An error is returned if the World
// configuration is invalid.
func (conf Config) New() (*Server, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.World.Log == nil {
		conf.World.Log = conf.Log
	}
	w, err := conf.World.New()
	if err != nil {
		return nil, fmt.Errorf("create world: %w", err)
	}
	return &Server{conf: conf, w: w, observer: w.NewLoader(conf.ObserverRadius, nil)}, nil
}

// World returns the World of the Server.
func (srv *Server) World() *world.World {
	return srv.w
}

// Observer returns the Loader that follows the camera of the Server.
func (srv *Server) Observer() *world.Loader {
	return srv.observer
}

// Listen starts the HTTP view in the background if an address is configured.
// It returns immediately.
func (srv *Server) Listen() {
	if srv.conf.HTTPAddress == "" {
		return
	}
	h := hertz.New(hertz.WithHostPorts(srv.conf.HTTPAddress), hertz.WithExitWaitTime(time.Second))
	view.Handler{World: srv.w, Observer: srv.observer, Log: srv.conf.Log}.RegisterRoutes(h)
	srv.http = h

	srv.running.Add(1)
	go func() {
		defer srv.running.Done()
		if err := h.Run(); err != nil {
			srv.conf.Log.Error("HTTP view stopped.", "err", err)
		}
	}()
	srv.conf.Log.Info("HTTP view listening.", "addr", srv.conf.HTTPAddress)
}

// Close shuts down the HTTP view, detaches the observer and closes the World.
func (srv *Server) Close() error {
	var err error
	srv.once.Do(func() {
		if srv.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := srv.http.Shutdown(ctx); shutdownErr != nil {
				srv.conf.Log.Error("shut down HTTP view: " + shutdownErr.Error())
			}
			srv.running.Wait()
		}
		_ = srv.observer.Close()
		err = srv.w.Close()
	})
	return err
}
