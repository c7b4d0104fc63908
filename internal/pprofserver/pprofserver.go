// Package pprofserver exposes the runtime profiles on the loopback interface.
package pprofserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/myrjola/keeper/internal/errors"
)

func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

func newServer(logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	Handle(mux)
	return &http.Server{ //nolint:exhaustruct // profiles stream for as long as requested
		Handler:           mux,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ReadHeaderTimeout: time.Second,
	}
}

// ListenAndServe serves pprof at ipv6 loopback address ::1 and given port until ctx is done.
func ListenAndServe(ctx context.Context, port string, logger *slog.Logger) error {
	addr := fmt.Sprintf("[::1]%s", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "pprof listen", slog.String("addr", addr))
	}
	srv := newServer(logger)
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "starting pprof server", slog.String("pprof_addr", listener.Addr().String()))
	if err = srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "pprof serve")
	}
	return nil
}
