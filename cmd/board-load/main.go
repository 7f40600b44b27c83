// Command board-load opens many snapshot streams on one session while
// driving commands into it, and fails when streams drop or stay silent.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

type loadConfig struct {
	BaseURL     string
	Connections int
	Duration    time.Duration
	CommandRate time.Duration
}

type loadResult struct {
	Attempts uint64
	Failures uint64
	Events   uint64
	Commands uint64
}

func (r loadResult) failureRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Failures) / float64(r.Attempts)
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func main() {
	cfg := loadConfig{
		BaseURL:     strings.TrimRight(getenv("BOARD_URL", "http://localhost:8080"), "/"),
		Connections: getenvInt("SSE_CONNECTIONS", 200),
		Duration:    time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second,
		CommandRate: time.Duration(getenvInt("COMMAND_INTERVAL_MS", 250)) * time.Millisecond,
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	res, err := run(ctx, http.DefaultClient, cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{
		"connections":         cfg.Connections,
		"duration_sec":        int(cfg.Duration.Seconds()),
		"events_received":     res.Events,
		"commands_sent":       res.Commands,
		"connection_failures": res.Failures,
	}).Info("load finished")
	if res.Events == 0 || res.failureRate() > 0.01 {
		os.Exit(1)
	}
}

func run(ctx context.Context, client *http.Client, cfg loadConfig) (loadResult, error) {
	sessionID, err := createSession(ctx, client, cfg.BaseURL)
	if err != nil {
		return loadResult{}, err
	}
	base := cfg.BaseURL + "/api/sessions/" + sessionID

	var res loadResult
	var wg sync.WaitGroup
	wg.Add(cfg.Connections)
	for range cfg.Connections {
		go func() {
			defer wg.Done()
			stream(ctx, client, base+"/stream", &res)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		drive(ctx, client, base+"/commands", cfg.CommandRate, &res)
	}()

	wg.Wait()
	return loadResult{
		Attempts: atomic.LoadUint64(&res.Attempts),
		Failures: atomic.LoadUint64(&res.Failures),
		Events:   atomic.LoadUint64(&res.Events),
		Commands: atomic.LoadUint64(&res.Commands),
	}, nil
}

func createSession(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/sessions", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: status %d", resp.StatusCode)
	}
	var body struct {
		SessionID string `json:"sessionId"`
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if err := sonic.Unmarshal(data, &body); err != nil || body.SessionID == "" {
		return "", fmt.Errorf("create session: bad response %q", data)
	}
	return body.SessionID, nil
}

func stream(ctx context.Context, client *http.Client, url string, res *loadResult) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		atomic.AddUint64(&res.Attempts, 1)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			atomic.AddUint64(&res.Failures, 1)
			return
		}
		resp, err := client.Do(req)
		if err != nil || resp.StatusCode != http.StatusOK {
			if resp != nil {
				resp.Body.Close()
			}
			if ctx.Err() != nil {
				return
			}
			atomic.AddUint64(&res.Failures, 1)
			time.Sleep(backoff)
			backoff = min(backoff*2, 5*time.Second)
			continue
		}
		backoff = time.Second
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if strings.HasPrefix(scanner.Text(), "data:") {
				atomic.AddUint64(&res.Events, 1)
			}
		}
		resp.Body.Close()
		if ctx.Err() != nil {
			return
		}
		atomic.AddUint64(&res.Failures, 1)
		time.Sleep(backoff)
	}
}

// drive alternates adding a task and toggling the newest one so every
// tick produces a state change.
func drive(ctx context.Context, client *http.Client, url string, every time.Duration, res *loadResult) {
	if every <= 0 {
		every = 250 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	var n int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n++
		body := fmt.Sprintf(`[{"type":"set-input","text":"load %d"},{"type":"add-task"},{"type":"toggle-done","id":%d}]`, n, n)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			atomic.AddUint64(&res.Commands, 1)
		}
	}
}
