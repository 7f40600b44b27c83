package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/box129/ToDo-ForPortfolio/api"
	"github.com/box129/ToDo-ForPortfolio/session"
	"github.com/box129/ToDo-ForPortfolio/storage"
)

func TestRunAgainstBoard(t *testing.T) {
	logger, _ := test.NewNullLogger()
	e := echo.New()
	api.Register(e, session.NewRegistry(logger, time.Hour), storage.NewMemoryFlags(), storage.NewMemoryDeduper(time.Minute), logger, 0)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	res, err := run(ctx, &http.Client{}, loadConfig{
		BaseURL:     srv.URL,
		Connections: 3,
		CommandRate: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Commands == 0 {
		t.Fatalf("no commands accepted: %+v", res)
	}
	if res.Events < 3 {
		t.Fatalf("expected at least one event per stream, got %+v", res)
	}
	if res.Failures != 0 {
		t.Fatalf("unexpected stream failures: %+v", res)
	}
}
