package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-salon/pkg/metrics"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/utilities"
)

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	// SnowflakeNode seeds message ids.
	SnowflakeNode int64
}

// Dispatcher delivers messages on background workers. Dispatch never blocks
// on delivery and never reports an error: failures are logged and counted.
type Dispatcher struct {
	mailer Mailer
	logger *zap.SugaredLogger
	cfg    DispatcherConfig
	queue  chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(mailer Mailer, logger *zap.SugaredLogger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.SnowflakeNode <= 0 {
		cfg.SnowflakeNode = 1
	}
	d := &Dispatcher{
		mailer: mailer,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan Message, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Dispatch queues msg for delivery. A full queue or a closed dispatcher drops
// the message with a warning.
func (d *Dispatcher) Dispatch(msg Message) {
	if msg.ID == "" {
		msg.ID = utilities.NewSnowflakeIDWithNode(d.cfg.SnowflakeNode)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warnw("notification dropped: dispatcher closed", "kind", msg.Kind, "to", msg.To)
		metrics.RecordNotification(msg.Kind, "dropped")
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.logger.Warnw("notification dropped: queue full", "kind", msg.Kind, "to", msg.To)
		metrics.RecordNotification(msg.Kind, "dropped")
	}
}

// Close stops accepting messages and waits until queued ones were attempted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("mailer panicked", "kind", msg.Kind, "id", msg.ID, "panic", r)
			metrics.RecordNotification(msg.Kind, "failed")
		}
	}()
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.logger.Warnw("failed to send notification", "kind", msg.Kind, "id", msg.ID, "to", msg.To, "err", err)
		metrics.RecordNotification(msg.Kind, "failed")
		return
	}
	d.logger.Debugw("notification sent", "kind", msg.Kind, "id", msg.ID, "to", msg.To)
	metrics.RecordNotification(msg.Kind, "sent")
}
