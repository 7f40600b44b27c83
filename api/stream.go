package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/box129/ToDo-ForPortfolio/session"
)

// streamState pushes the session snapshot as server-sent events: once on
// connect, then after every change.
func streamState(sessions *session.Registry, logger *log.Logger, heartbeat time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := lookup(c, sessions)
		if s == nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)

		ch, release := s.Subscribe()
		defer release()

		var tick <-chan time.Time
		if heartbeat > 0 {
			ticker := time.NewTicker(heartbeat)
			defer ticker.Stop()
			tick = ticker.C
		}

		ctx := c.Request().Context()
		var sent uint64
		first := true
		for {
			st := s.Snapshot()
			if first || st.Version() != sent {
				data, err := sonic.Marshal(newStateResponse(s.ID(), st))
				if err != nil {
					logger.WithError(err).WithField("session", s.ID()).Error("encode snapshot")
					return err
				}
				if err := writeEvent(c.Response(), data); err != nil {
					return nil
				}
				flusher.Flush()
				sent, first = st.Version(), false
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ch:
			case <-tick:
				if _, err := c.Response().Write([]byte(": ping\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, data []byte) error {
	if _, err := w.Write([]byte("event: state\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
