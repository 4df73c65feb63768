// Package webhook posts signed ingestion outcome events to an operator
// endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/metrics"
)

const (
	EventFileIngested = "file.ingested"
	EventFileFailed   = "file.failed"

	HeaderEvent     = "X-Docingest-Event"
	HeaderSignature = "X-Docingest-Signature"
	HeaderDelivery  = "X-Docingest-Delivery"
)

// Event is the JSON body of one delivery.
type Event struct {
	Type            string    `json:"type"`
	FileID          uuid.UUID `json:"file_id"`
	QueueID         uuid.UUID `json:"queue_id"`
	Status          string    `json:"status"`
	ChunksCreated   int       `json:"chunks_created,omitempty"`
	VectorsInserted int       `json:"vectors_inserted,omitempty"`
	Error           string    `json:"error,omitempty"`
	At              time.Time `json:"at"`
}

// Dispatcher delivers events in the background, one at a time, in the order
// they were queued. Deliveries are attempted once; when the buffer is full new
// events are dropped.
type Dispatcher struct {
	url        string
	secret     string
	httpClient *http.Client
	events     chan Event
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
}

func NewDispatcher(url, secret string, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 100
	}
	d := &Dispatcher{
		url:    url,
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "webhook"),
	}
	go d.processLoop()
	return d
}

func (d *Dispatcher) Notify(ev Event) {
	select {
	case d.events <- ev:
	default:
		metrics.CaptureWebhook("dropped")
		d.logger.Warn("webhook queue full, dropping event", "event", ev.Type, "file_id", ev.FileID)
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.events) })
	<-d.done
}

func (d *Dispatcher) processLoop() {
	defer close(d.done)
	for ev := range d.events {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	log := d.logger.With("event", ev.Type, "file_id", ev.FileID)

	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.CaptureWebhook("error")
		log.Error("marshal webhook event", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		metrics.CaptureWebhook("error")
		log.Error("webhook request creation failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, ev.Type)
	req.Header.Set(HeaderDelivery, uuid.NewString())
	if d.secret != "" {
		req.Header.Set(HeaderSignature, Sign(payload, d.secret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		metrics.CaptureWebhook("error")
		log.Error("webhook delivery failed", "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		metrics.CaptureWebhook("rejected")
		log.Warn("webhook received non-success response", "status", resp.StatusCode)
		return
	}
	metrics.CaptureWebhook("delivered")
}

// Sign returns the signature header value for payload: the hex HMAC-SHA256
// prefixed with "sha256=".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
