package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sw33tLie/creatorlive/internal/utils"
	"github.com/sw33tLie/creatorlive/pkg/creator"
	"github.com/sw33tLie/creatorlive/pkg/storage"
)

// LiveLister produces the ranked live-streams listing.
type LiveLister interface {
	GetLiveStreams(ctx context.Context) []creator.LiveStatus
}

// Locker guards profile writes against other processes sharing the store,
// such as "creatorlive db add" on the same SQLite file.
type Locker interface {
	Lock() error
	Unlock() error
}

type Server struct {
	Live     LiveLister
	Profiles storage.Repository
	Username string
	Password string
	// WriteLock is held around upserts and deletes when set.
	WriteLock Locker
}

func New(live LiveLister, profiles storage.Repository, user, pass string) *Server {
	return &Server{
		Live:     live,
		Profiles: profiles,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/live-streams", s.handleLiveStreams)

	// Admin group
	mux.HandleFunc("GET /api/profiles", s.basicAuth(s.handleListProfiles))
	mux.HandleFunc("POST /api/profiles", s.basicAuth(s.handleUpsertProfile))
	mux.HandleFunc("DELETE /api/profiles/{id}", s.basicAuth(s.handleDeleteProfile))
	mux.HandleFunc("GET /api/changes", s.basicAuth(s.handleChanges))

	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		utils.Log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// withWriteLock runs fn under WriteLock, if any.
func (s *Server) withWriteLock(fn func() error) error {
	if s.WriteLock == nil {
		return fn()
	}
	if err := s.WriteLock.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := s.WriteLock.Unlock(); err != nil {
			utils.Log.Warnf("%v", err)
		}
	}()
	return fn()
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
