// Package server exposes maternal environments over HTTP so that agents
// written outside of Go can train against them.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zeu5/maternal-rl/maternal"
)

// session is one remote environment. Requests on the same session are serialized.
type session struct {
	env     *maternal.Environment
	mtx     sync.Mutex
	created time.Time
}

type Config struct {
	// MaxSessions caps the number of open environments, 0 is unlimited
	MaxSessions int
	Logger      *slog.Logger
}

// Server keeps the open environments keyed by id
type Server struct {
	config Config
	logger *slog.Logger

	lock     *sync.Mutex
	sessions map[string]*session
	router   *gin.Engine
}

func NewServer(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config:   config,
		logger:   config.Logger,
		lock:     new(sync.Mutex),
		sessions: make(map[string]*session),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)
	r.GET("/spaces", s.handleSpaces)
	r.POST("/envs", s.handleCreate)
	r.GET("/envs/:id", s.handleGet)
	r.POST("/envs/:id/reset", s.handleReset)
	r.POST("/envs/:id/step", s.handleStep)
	r.DELETE("/envs/:id", s.handleDelete)
	s.router = r
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

// Sessions is the number of open environments
func (s *Server) Sessions() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.sessions)
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("serving environments", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

type actionSpec struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleSpaces(c *gin.Context) {
	actions := make([]actionSpec, len(maternal.Interventions))
	for i, a := range maternal.Interventions {
		actions[i] = actionSpec{ID: int(a), Name: a.String()}
	}
	c.JSON(http.StatusOK, gin.H{
		"observation_space": gin.H{
			"low":   maternal.ObservationLow,
			"high":  maternal.ObservationHigh,
			"shape": []int{len(maternal.ObservationLow)},
			"dtype": "float64",
		},
		"action_space": gin.H{
			"n":       maternal.NumInterventions,
			"actions": actions,
		},
	})
}

type createRequest struct {
	MaxSteps *int    `json:"max_steps"`
	Seed     *uint64 `json:"seed"`
}

func (s *Server) handleCreate(c *gin.Context) {
	req := createRequest{}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	config := maternal.DefaultConfig()
	if req.MaxSteps != nil {
		config.MaxSteps = *req.MaxSteps
	}
	opts := make([]maternal.Option, 0)
	if req.Seed != nil {
		opts = append(opts, maternal.WithSeed(*req.Seed))
	}
	env, err := maternal.NewEnvironment(config, opts...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	s.lock.Lock()
	if s.config.MaxSessions > 0 && len(s.sessions) >= s.config.MaxSessions {
		s.lock.Unlock()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many open environments"})
		return
	}
	s.sessions[id] = &session{env: env, created: time.Now()}
	s.lock.Unlock()

	s.logger.Debug("created environment", "id", id, "max_steps", config.MaxSteps)
	c.JSON(http.StatusCreated, gin.H{
		"id":          id,
		"max_steps":   config.MaxSteps,
		"observation": env.Observation(),
	})
}

func (s *Server) handleGet(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.mtx.Lock()
	scene := sess.env.Scene()
	sess.mtx.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"step":        scene.Step,
		"max_steps":   scene.MaxSteps,
		"vitals":      scene.Vitals,
		"severity":    scene.Severity,
		"last_action": scene.LastAction,
		"terminated":  scene.Terminated,
	})
}

type resetRequest struct {
	Seed *uint64 `json:"seed"`
}

func (s *Server) handleReset(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	req := resetRequest{}
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}

	sess.mtx.Lock()
	var obs maternal.Observation
	var info maternal.Info
	if req.Seed != nil {
		obs, info = sess.env.ResetWithSeed(*req.Seed)
	} else {
		obs, info = sess.env.Reset()
	}
	sess.mtx.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"observation": obs,
		"info":        info,
	})
}

// stepRequest carries either the action index or its name
type stepRequest struct {
	Action     *int   `json:"action"`
	ActionName string `json:"action_name"`
}

func (r stepRequest) intervention() (maternal.Intervention, error) {
	if r.Action != nil {
		return maternal.Intervention(*r.Action), nil
	}
	return maternal.ParseInterventionName(r.ActionName)
}

func (s *Server) handleStep(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	req := stepRequest{}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Action == nil && req.ActionName == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request must carry an integer action or an action_name"})
		return
	}
	action, err := req.intervention()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess.mtx.Lock()
	result, err := sess.env.Step(action)
	step := sess.env.CurrentStep()
	sess.mtx.Unlock()

	switch {
	case errors.Is(err, maternal.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, maternal.ErrEpisodeTerminated):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"observation": result.Observation,
		"reward":      result.Reward,
		"terminated":  result.Terminated,
		"truncated":   result.Truncated,
		"info":        result.Info,
		"step":        step,
	})
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	s.lock.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.lock.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown environment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// session looks up the environment named in the path, writing a 404 if it is missing
func (s *Server) session(c *gin.Context) (*session, bool) {
	s.lock.Lock()
	sess, ok := s.sessions[c.Param("id")]
	s.lock.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown environment"})
	}
	return sess, ok
}

// bindOptionalJSON binds the body when there is one
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
