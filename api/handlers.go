package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/box129/ToDo-ForPortfolio/domain"
	"github.com/box129/ToDo-ForPortfolio/drag"
	"github.com/box129/ToDo-ForPortfolio/session"
	"github.com/box129/ToDo-ForPortfolio/storage"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, sessions *session.Registry, flags storage.FlagStore, deduper storage.Deduper, logger *log.Logger, heartbeat time.Duration) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.JSONSerializer = sonicSerializer{}
	e.Use(RequestMetrics(logger), GzipRequestMiddleware(logger))

	g := e.Group("/api/sessions")
	g.POST("", createSession(sessions))
	g.DELETE("/:id", deleteSession(sessions))
	g.GET("/:id/state", getState(sessions))
	g.POST("/:id/commands", postCommands(sessions, deduper, logger))
	g.POST("/:id/drag/start", dragStart(sessions))
	g.POST("/:id/drag/end", dragEnd(sessions))
	g.POST("/:id/drag/cancel", dragCancel(sessions))
	g.POST("/:id/drag/resolve", dragResolve(sessions))
	g.GET("/:id/stream", streamState(sessions, logger, heartbeat))

	e.GET("/api/tutorial/:client", getTutorial(flags, logger))
	e.PUT("/api/tutorial/:client", putTutorial(flags, logger))
	e.GET("/healthz", healthz(flags))
}

func healthz(flags storage.FlagStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := flags.Ping(c.Request().Context()); err != nil {
			metricsFrom(c).SetErrorStage("flag_store")
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	}
}

func lookup(c echo.Context, sessions *session.Registry) (*session.Session, error) {
	s, err := sessions.Get(c.Param("id"))
	if err != nil {
		metricsFrom(c).SetErrorStage("session")
		return nil, c.String(http.StatusNotFound, err.Error())
	}
	return s, nil
}

// decodeBody reads a size-limited JSON body, rejecting unknown fields.
func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		metricsFrom(c).SetErrorStage("decode")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body").SetInternal(err)
	}
	return nil
}

func createSession(sessions *session.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := sessions.Create()
		return c.JSON(http.StatusCreated, newStateResponse(s.ID(), s.Snapshot()))
	}
}

func deleteSession(sessions *session.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !sessions.Remove(c.Param("id")) {
			return c.String(http.StatusNotFound, session.ErrNotFound.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getState(sessions *session.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookup(c, sessions)
		if s == nil {
			return err
		}
		return c.JSON(http.StatusOK, newStateResponse(s.ID(), s.Snapshot()))
	}
}

func postCommands(sessions *session.Registry, deduper storage.Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookup(c, sessions)
		if s == nil {
			return err
		}
		m := metricsFrom(c)

		reqs := make([]commandRequest, 0, 4)
		if err := decodeBody(c, &reqs); err != nil {
			return err
		}
		m.SetCommands(len(reqs))

		cmds := make([]domain.Command, len(reqs))
		keys := make([]string, len(reqs))
		for i, r := range reqs {
			cmd, err := r.toDomain()
			if err != nil {
				m.SetErrorStage("command_type")
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			cmds[i] = cmd
			keys[i] = r.IdempotencyKey
			if keys[i] == "" {
				keys[i] = uuid.NewString()
			}
		}

		ctx := c.Request().Context()
		fresh, err := deduper.AddMany(ctx, s.ID(), keys)
		if err != nil {
			m.SetErrorStage("dedupe")
			logger.WithError(err).WithField("session", s.ID()).Error("record idempotency keys")
			return c.String(http.StatusServiceUnavailable, err.Error())
		}

		resp := commandsResponse{IdempotencyKeys: keys}
		for i, cmd := range cmds {
			if !fresh[i] {
				resp.Skipped++
				continue
			}
			st, err := s.Dispatch(cmd)
			if errors.Is(err, session.ErrRejected) {
				releaseKeys(c, deduper, logger, s.ID(), keys[i:], fresh[i:])
				m.SetErrorStage("rejected")
				m.SetApplied(resp.Applied)
				resp.Error = err.Error()
				resp.State = newStateResponse(s.ID(), st)
				return c.JSON(http.StatusUnprocessableEntity, resp)
			}
			resp.Applied++
		}
		m.SetApplied(resp.Applied)
		resp.State = newStateResponse(s.ID(), s.Snapshot())
		return c.JSON(http.StatusOK, resp)
	}
}

// releaseKeys forgets the keys this request recorded for commands that were
// never applied, so a corrected retry is not skipped.
func releaseKeys(c echo.Context, deduper storage.Deduper, logger *log.Logger, sessionID string, keys []string, fresh []bool) {
	ctx := c.Request().Context()
	for i, key := range keys {
		if !fresh[i] {
			continue
		}
		if err := deduper.Remove(ctx, sessionID, key); err != nil {
			logger.WithError(err).WithFields(log.Fields{"session": sessionID, "key": key}).Error("dedupe rollback failed")
		}
	}
}

func dragStart(sessions *session.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookup(c, sessions)
		if s == nil {
			return err
		}
		var req dragStartRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		s.BeginDrag(req.ID)
		return c.NoContent(http.StatusNoContent)
	}
}

func dragEnd(sessions *session.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookup(c, sessions)
		if s == nil {
			return err
		}
		var req dragEndRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		target, err := drag.ParseTarget(req.Over)
		if err != nil {
			s.CancelDrag()
			metricsFrom(c).SetErrorStage("target")
			return c.String(http.StatusBadRequest, err.Error())
		}
		cmd, st := s.EndDrag(target)
		return c.JSON(http.StatusOK, newDragResponse(s.ID(), cmd, st))
	}
}

func dragCancel(sessions *session.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookup(c, sessions)
		if s == nil {
			return err
		}
		s.CancelDrag()
		return c.NoContent(http.StatusNoContent)
	}
}

func dragResolve(sessions *session.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookup(c, sessions)
		if s == nil {
			return err
		}
		var req dragResolveRequest
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		target, err := drag.ParseTarget(req.Over)
		if err != nil {
			metricsFrom(c).SetErrorStage("target")
			return c.String(http.StatusBadRequest, err.Error())
		}
		cmd, st := s.ResolveDrag(req.Dragged, target)
		return c.JSON(http.StatusOK, newDragResponse(s.ID(), cmd, st))
	}
}

func newDragResponse(sessionID string, cmd domain.Command, st domain.State) dragResponse {
	resp := dragResponse{State: newStateResponse(sessionID, st)}
	if cmd != nil {
		resp.Command = cmd.Type()
	}
	return resp
}

func getTutorial(flags storage.FlagStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		dismissed, err := flags.Get(c.Request().Context(), c.Param("client"))
		if err != nil {
			metricsFrom(c).SetErrorStage("flag_store")
			logger.WithError(err).WithField("client", c.Param("client")).Error("tutorial flag store")
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.JSON(http.StatusOK, tutorialFlag{Dismissed: dismissed})
	}
}

func putTutorial(flags storage.FlagStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req tutorialFlag
		if err := decodeBody(c, &req); err != nil {
			return err
		}
		if err := flags.Set(c.Request().Context(), c.Param("client"), req.Dismissed); err != nil {
			metricsFrom(c).SetErrorStage("flag_store")
			logger.WithError(err).WithField("client", c.Param("client")).Error("tutorial flag store")
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.JSON(http.StatusOK, req)
	}
}
