package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-playground/validator/v10"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Logger interface {
	Error(msg string, args ...any)
}

type LogEntry struct {
	Level     string `json:"level"`
	Message   string `json:"msg"`
	Caller    string `json:"caller,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	time      time.Time
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// Pusher batches entries and ships them to loki, one stream per level.
type Pusher struct {
	config    Config
	ctx       context.Context
	cancel    context.CancelFunc
	client    *http.Client
	entries   chan LogEntry
	quit      chan struct{}
	batch     []LogEntry
	dropped   atomic.Int64
	waitGroup sync.WaitGroup
	stopOnce  sync.Once
	logger    Logger
}

func New(ctx context.Context, cfg Config, logger Logger) (*Pusher, error) {

	cfg.setDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pusher{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		client:  &http.Client{Timeout: 10 * time.Second},
		entries: make(chan LogEntry, cfg.BufferSize),
		quit:    make(chan struct{}),
		batch:   make([]LogEntry, 0, cfg.BatchMaxSize),
		logger:  logger,
	}

	p.waitGroup.Add(1)
	go p.run()
	return p, nil
}

// Push queues an entry without blocking the caller.
func (p *Pusher) Push(e LogEntry) error {
	if e.time.IsZero() {
		e.time = time.Now()
	}
	select {
	case <-p.quit:
		return nil
	default:
	}
	select {
	case p.entries <- e:
	default:
		p.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many entries were discarded because the buffer was full.
func (p *Pusher) Dropped() int64 {
	return p.dropped.Load()
}

// Stop flushes what is buffered and stops the sender.
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.waitGroup.Wait()
		p.cancel()
	})
}

func (p *Pusher) run() {
	defer p.waitGroup.Done()

	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	flush := func() {
		if len(p.batch) == 0 {
			return
		}
		if err := p.send(p.batch); err != nil {
			p.logger.Error("failed to send logs", "error", err, "lines", len(p.batch))
		}
		p.batch = p.batch[:0]
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.quit:
			p.drain()
			flush()
			return
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
			if len(p.batch) >= p.config.BatchMaxSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *Pusher) drain() {
	for {
		select {
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
		default:
			return
		}
	}
}

func (p *Pusher) buildRequest(entries []LogEntry) pushRequest {
	byLevel := map[string][][2]string{}
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		timestamp := strconv.FormatInt(entry.time.UnixNano(), 10)
		byLevel[entry.Level] = append(byLevel[entry.Level], [2]string{timestamp, string(line)})
	}

	levels := make([]string, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Strings(levels)

	request := pushRequest{Streams: make([]stream, 0, len(levels))}
	for _, level := range levels {
		labels := make(map[string]string, len(p.config.Labels)+1)
		for k, v := range p.config.Labels {
			labels[k] = v
		}
		labels["level"] = level
		request.Streams = append(request.Streams, stream{Stream: labels, Values: byLevel[level]})
	}
	return request
}

func (p *Pusher) send(entries []LogEntry) error {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)

	if err := json.NewEncoder(gz).Encode(p.buildRequest(entries)); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, p.config.Url, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if p.config.TenantKey != "" {
		req.Header.Set(p.config.TenantKey, p.config.TenantValue)
	}
	if p.config.Username != "" && p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("received unexpected response code from Loki: %s, body: %s", resp.Status, string(body))
	}

	return nil
}
