package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"tg-broadcast/internal/logger"
	"tg-broadcast/internal/models"
	"tg-broadcast/internal/transport"
)

// Result is the outcome of delivering to one destination
type Result struct {
	ChatID    int64
	MessageID int
	Pinned    bool
	Err       error // nil when the copy was delivered
	LinkErr   error // delivered but the link could not be stored
	PinErr    error
}

func (r Result) Delivered() bool { return r.Err == nil }

// Report aggregates a fan-out pass
type Report struct {
	Results []Result
	// Interrupted is set when the context ended before every destination
	// was attempted.
	Interrupted bool
}

// Delivered returns how many destinations received a copy
func (r Report) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Delivered() {
			n++
		}
	}
	return n
}

// Failed returns how many destinations were skipped
func (r Report) Failed() int {
	return len(r.Results) - r.Delivered()
}

// Pinned returns how many delivered copies were pinned
func (r Report) Pinned() int {
	n := 0
	for _, res := range r.Results {
		if res.Pinned {
			n++
		}
	}
	return n
}

// PinFailures returns how many delivered copies could not be pinned. Those
// copies still count as delivered.
func (r Report) PinFailures() int {
	n := 0
	for _, res := range r.Results {
		if res.Delivered() && res.PinErr != nil {
			n++
		}
	}
	return n
}

// Unlinked returns how many delivered copies have no stored link and so
// will not follow later edits of the source
func (r Report) Unlinked() int {
	n := 0
	for _, res := range r.Results {
		if res.Delivered() && res.LinkErr != nil {
			n++
		}
	}
	return n
}

// FailuresByKind counts skipped destinations per failure class
func (r Report) FailuresByKind() map[error]int {
	out := map[error]int{}
	for _, res := range r.Results {
		if res.Err != nil {
			out[kindOf(res.Err)]++
		}
	}
	return out
}

func kindOf(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return transport.ErrTransient
	}
	return transport.KindOf(err)
}

// Dispatcher fans one source message out to the destination chats
type Dispatcher struct {
	transport    transport.Transport
	tracker      *LinkTracker
	destinations []int64
	delay        time.Duration
}

// NewDispatcher creates a Dispatcher for a fixed destination list. delay is
// the minimum spacing between two deliveries, zero disables it.
func NewDispatcher(tr transport.Transport, tracker *LinkTracker, destinations []int64, delay time.Duration) *Dispatcher {
	dst := make([]int64, len(destinations))
	copy(dst, destinations)
	return &Dispatcher{
		transport:    tr,
		tracker:      tracker,
		destinations: dst,
		delay:        delay,
	}
}

// Destinations returns a copy of the configured destination list
func (d *Dispatcher) Destinations() []int64 {
	dst := make([]int64, len(d.destinations))
	copy(dst, d.destinations)
	return dst
}

// Distribute delivers src to every configured destination
func (d *Dispatcher) Distribute(ctx context.Context, src models.SourceRef, pin bool) Report {
	return d.DistributeTo(ctx, src, d.destinations, pin)
}

// DistributeTo delivers src to each destination independently. A failed
// destination is recorded and skipped, it never stops the others.
func (d *Dispatcher) DistributeTo(ctx context.Context, src models.SourceRef, destinations []int64, pin bool) Report {
	var report Report
	if len(destinations) == 0 {
		return report
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if d.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(d.delay), 1)
	}

	for i, chatID := range destinations {
		if err := limiter.Wait(ctx); err != nil {
			report.Interrupted = true
			for _, rest := range destinations[i:] {
				report.Results = append(report.Results, Result{ChatID: rest, Err: err})
			}
			logger.Warningf("Distribution of %d/%d interrupted, %d destinations not attempted: %v",
				src.ChatID, src.MessageID, len(destinations)-i, err)
			break
		}
		report.Results = append(report.Results, d.deliverOne(ctx, src, chatID, pin))
	}

	if report.Failed() > 0 || report.PinFailures() > 0 || report.Unlinked() > 0 {
		logger.Warningf("Distributed %d/%d: %d delivered, %d pinned, %d pin failures, %d unlinked, failed by kind %v",
			src.ChatID, src.MessageID, report.Delivered(), report.Pinned(), report.PinFailures(),
			report.Unlinked(), report.FailuresByKind())
		return report
	}
	logger.Infof("Distributed %d/%d: %d delivered, %d pinned",
		src.ChatID, src.MessageID, report.Delivered(), report.Pinned())
	return report
}

func (d *Dispatcher) deliverOne(ctx context.Context, src models.SourceRef, chatID int64, pin bool) Result {
	res := Result{ChatID: chatID}

	messageID, err := d.transport.CopySend(ctx, src.ChatID, src.MessageID, chatID)
	if err != nil {
		res.Err = err
		logDeliveryFailure(chatID, err)
		return res
	}
	res.MessageID = messageID

	if err := d.tracker.RecordLink(ctx, src, models.Copy{ChatID: chatID, MessageID: messageID}); err != nil {
		res.LinkErr = err
		logger.Errorf("Delivered to %d as message %d but failed to record link: %v", chatID, messageID, err)
	}

	if pin {
		if err := d.transport.Pin(ctx, chatID, messageID); err != nil {
			res.PinErr = err
			logger.Warningf("Failed to pin message %d in %d: %v", messageID, chatID, err)
		} else {
			res.Pinned = true
		}
	}
	return res
}

func logDeliveryFailure(chatID int64, err error) {
	switch kindOf(err) {
	case transport.ErrTransient:
		logger.Warningf("Transient delivery failure to %d, skipping: %v", chatID, err)
	case transport.ErrNotFound:
		logger.Warningf("Destination %d not found, skipping: %v", chatID, err)
	default:
		logger.Errorf("Delivery to %d failed: %v", chatID, err)
	}
}
