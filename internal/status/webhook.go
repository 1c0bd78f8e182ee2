package status

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"drafter/internal/config"
	"drafter/internal/logging"
	"drafter/internal/queue"
	"drafter/internal/services"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Drafter-Signature"

const maxWebhookBody = 1 << 20

// WebhookPayload is the provider's callback body.
type WebhookPayload struct {
	JobID     string  `json:"jobId"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// waker pulls a job's poll deadline forward after a webhook delivery.
type waker interface {
	Wake(jobID string)
}

// Webhook verifies signed provider callbacks and funnels them into the
// job state machine. Deliveries with a bad signature are rejected before
// any job is touched.
type Webhook struct {
	secret []byte
	store  *queue.Store
	waker  waker
	hooks  Hooks
	logger *slog.Logger
}

func NewWebhook(cfg *config.Config, store *queue.Store, w waker, hooks Hooks, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Webhook{
		secret: []byte(cfg.Provider.WebhookSecret),
		store:  store,
		waker:  w,
		hooks:  hooks,
		logger: logging.NewComponentLogger(logger, "webhook"),
	}
}

// Signature computes the hex HMAC-SHA256 a valid delivery must carry.
func Signature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "read body", http.StatusBadRequest)
		return
	}

	if !w.verify(body, r.Header.Get(SignatureHeader)) {
		w.logger.Warn("webhook signature rejected")
		http.Error(rw, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "malformed payload", http.StatusBadRequest)
		return
	}
	next, ok := queue.ParseStatus(payload.Status)
	if !ok {
		http.Error(rw, "unknown status", http.StatusBadRequest)
		return
	}

	progress := payload.Progress
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}

	transition := queue.TransitionPayload{
		Progress: &progress,
		Message:  payload.Message,
		Stage:    payload.Stage,
	}
	if next == queue.StatusFailed {
		transition.ErrorKind = string(services.KindRejected)
		transition.ErrorMessage = payload.Message
	}

	job, applied, err := w.store.ApplyUpdate(r.Context(), payload.JobID, next, transition)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			http.Error(rw, "unknown job", http.StatusNotFound)
			return
		}
		w.logger.Error("webhook apply failed", logging.Args(
			logging.String(logging.FieldJobID, payload.JobID),
			logging.Error(err),
		)...)
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}

	if applied {
		w.hooks.updated(r.Context(), job)
		w.logger.Info("webhook applied", logging.Args(
			logging.String(logging.FieldJobID, job.JobID),
			logging.String(logging.FieldStatus, string(job.Status)),
			logging.Float64(logging.FieldProgress, job.Progress),
		)...)
	}
	// Short-circuit the poll backoff so the poller confirms promptly.
	if job != nil && !job.IsTerminal() {
		if err := w.store.ShortCircuitPoll(r.Context(), payload.JobID); err != nil {
			w.logger.Warn("short-circuit failed", logging.Args(logging.Error(err))...)
		}
		if w.waker != nil {
			w.waker.Wake(payload.JobID)
		}
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(map[string]bool{"applied": applied})
}

func (w *Webhook) verify(body []byte, signature string) bool {
	// Fail closed when no secret is configured.
	if len(w.secret) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Signature(w.secret, body)), []byte(signature))
}
