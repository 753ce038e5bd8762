package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
	"github.com/FilingLensAI/filinglens-mvp/pkg/natsutil"
)

const (
	// IngestSubject carries ingestion jobs.
	IngestSubject = "engine.ingest"
	// DLQSubject receives jobs that exhausted their retries.
	DLQSubject = "engine.ingest.dlq"
	// MaxRetries is how many times a failed job is re-queued before the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Stage   string `json:"stage"`
	Retries int    `json:"retries"`
}

// Enqueue publishes one ingestion job, carrying the caller's trace context.
func Enqueue(ctx context.Context, nc *nats.Conn, ref domain.FilingRef) error {
	return natsutil.Publish(ctx, nc, IngestSubject, Job{Ref: ref})
}

// Ingestor runs one filing through the pipeline. *Orchestrator is the real
// implementation; wrappers add metrics or test behavior.
type Ingestor interface {
	Ingest(ctx context.Context, ref domain.FilingRef) (Receipt, error)
}

// publisher is the slice of *nats.Conn the job handler needs.
type publisher interface {
	Publish(subject string, data []byte) error
	PublishMsg(msg *nats.Msg) error
}

// StartConsumer subscribes to the ingest subject and runs each job through
// the ingestor. Transient failures are re-published with an incremented
// retry count; permanent failures and exhausted retries go to the DLQ.
func StartConsumer(nc *nats.Conn, o Ingestor, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		handleJob(nc, o, log, msg)
	})
}

func handleJob(pub publisher, o Ingestor, log *slog.Logger, msg *nats.Msg) {
	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		log.Error("ingest: unmarshal failed", "error", err)
		return
	}

	retries := 0
	if msg.Header != nil {
		if v := msg.Header.Get(retryHeader); v != "" {
			fmt.Sscanf(v, "%d", &retries)
		}
	}

	ctx := natsutil.ExtractContext(msg)
	receipt, err := o.Ingest(ctx, job.Ref)
	if err == nil {
		log.Info("ingest: success", "doc_id", receipt.DocID, "chunks", receipt.Chunks)
		ack(msg)
		return
	}

	if errors.Is(err, domain.ErrDuplicate) {
		log.Info("ingest: skipping duplicate", "doc_id", job.Ref.DocID())
		ack(msg)
		return
	}

	retries++
	log.Error("ingest: job failed",
		"doc_id", job.Ref.DocID(),
		"stage", domain.StageOf(err),
		"retry", retries,
		"error", err,
	)

	if retries >= MaxRetries || !domain.Retryable(err) {
		dlq := dlqMessage{
			Job:     job,
			Error:   err.Error(),
			Stage:   domain.StageOf(err),
			Retries: retries,
		}
		data, _ := json.Marshal(dlq)
		if pubErr := pub.Publish(DLQSubject, data); pubErr != nil {
			log.Error("ingest: DLQ publish failed", "error", pubErr)
		}
	} else {
		retryMsg := nats.NewMsg(IngestSubject)
		retryMsg.Data = msg.Data
		retryMsg.Header = nats.Header{}
		retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
		if pubErr := pub.PublishMsg(retryMsg); pubErr != nil {
			log.Error("ingest: retry publish failed", "error", pubErr)
		}
	}

	ack(msg)
}

// ack acknowledges the message when it came from JetStream.
func ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}
