package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/deepl0w/movie-sync/internal/config"
	"github.com/deepl0w/movie-sync/internal/core"
)

type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventJobPurged    Event = "job_purged"
)

type Payload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	Signature string      `json:"signature,omitempty"`
}

type JobEventData struct {
	MovieID      string              `json:"movie_id"`
	Title        string              `json:"title"`
	Year         string              `json:"year,omitempty"`
	Status       string              `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	RetryCount   int                 `json:"retry_count,omitempty"`
	Cleanup      *core.CleanupResult `json:"cleanup,omitempty"`
}

type Config struct {
	Targets     []config.WebhookTarget
	RetryCount  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	WorkerCount int
	QueueSize   int
}

type task struct {
	target  config.WebhookTarget
	event   Event
	payload *Payload
	attempt int
}

// Sender delivers job lifecycle notifications to configured HTTP
// targets. Deliveries run on a small worker pool so queue operations
// never wait on remote endpoints; a full delivery queue drops events
// rather than blocking.
type Sender struct {
	targets    []config.WebhookTarget
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
	workers    int
	queue      chan *task
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewSender(cfg Config) *Sender {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Sender{
		targets: cfg.Targets,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		workers:    cfg.WorkerCount,
		queue:      make(chan *task, cfg.QueueSize),
		stopCh:     make(chan struct{}),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sender) JobCompleted(m core.Movie) {
	s.enqueue(EventJobCompleted, &JobEventData{
		MovieID: m.ID,
		Title:   m.Title,
		Year:    m.Year,
		Status:  "completed",
	})
}

func (s *Sender) JobFailed(m core.Movie, errMsg string, retryCount int) {
	s.enqueue(EventJobFailed, &JobEventData{
		MovieID:      m.ID,
		Title:        m.Title,
		Year:         m.Year,
		Status:       "failed",
		ErrorMessage: errMsg,
		RetryCount:   retryCount,
	})
}

func (s *Sender) JobPurged(m core.Movie, res core.CleanupResult) {
	s.enqueue(EventJobPurged, &JobEventData{
		MovieID: m.ID,
		Title:   m.Title,
		Year:    m.Year,
		Status:  "purged",
		Cleanup: &res,
	})
}

func (s *Sender) enqueue(event Event, data interface{}) {
	for _, target := range s.targets {
		if !target.Wants(string(event)) {
			continue
		}

		t := &task{
			target: target,
			event:  event,
			payload: &Payload{
				Event:     string(event),
				Timestamp: time.Now(),
				Data:      data,
			},
		}

		select {
		case s.queue <- t:
		default:
			log.Printf("[webhook] queue full, dropping %s for %s", event, target.URL)
		}
	}
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				log.Printf("[webhook worker %d] failed to deliver %s to %s after %d attempts: %v",
					id, t.event, t.target.URL, t.attempt, err)
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(t.target, t.payload)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			log.Printf("[webhook] client error for %s, not retrying: %v", t.target.URL, err)
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			log.Printf("[webhook] retry %d/%d for %s in %v: %v",
				t.attempt, s.retryCount, t.target.URL, backoff, err)

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(target config.WebhookTarget, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	// The signature covers the serialized data exactly as it appears
	// on the wire, so receivers can verify it byte for byte.
	payload.Data = json.RawMessage(dataBytes)

	if target.Secret != "" {
		payload.Signature = signPayload(dataBytes, target.Secret)
	}

	fullPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", target.URL, bytes.NewReader(fullPayload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return nil
}

func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "http error: 4")
}
