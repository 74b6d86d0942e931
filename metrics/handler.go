package metrics

import (
	"time"

	"github.com/bluescreen10/httpstate/session"
)

// InstrumentedHandler decorates a session.Handler with metrics. It
// implements every optional handler interface but reports the
// capabilities of the decorated handler, so wrapping never changes how
// a session is persisted.
type InstrumentedHandler struct {
	next         session.Handler
	validator    session.IDValidator
	updater      session.TimestampUpdater
	capabilities session.Capabilities
	metrics      *Collector
}

var (
	_ session.Handler            = (*InstrumentedHandler)(nil)
	_ session.IDValidator        = (*InstrumentedHandler)(nil)
	_ session.TimestampUpdater   = (*InstrumentedHandler)(nil)
	_ session.CapabilityReporter = (*InstrumentedHandler)(nil)
)

// Wrap instruments next with the metrics of c.
func Wrap(next session.Handler, c *Collector) *InstrumentedHandler {
	h := &InstrumentedHandler{
		next:         next,
		capabilities: session.DetectCapabilities(next),
		metrics:      c,
	}
	h.validator, _ = next.(session.IDValidator)
	h.updater, _ = next.(session.TimestampUpdater)
	return h
}

// Capabilities returns the capabilities of the decorated handler.
func (h *InstrumentedHandler) Capabilities() session.Capabilities {
	return h.capabilities
}

func (h *InstrumentedHandler) Open(savePath, name string) error {
	start := time.Now()
	err := h.next.Open(savePath, name)
	h.metrics.observe("open", start, err)
	return err
}

func (h *InstrumentedHandler) Close() error {
	start := time.Now()
	err := h.next.Close()
	h.metrics.observe("close", start, err)
	return err
}

func (h *InstrumentedHandler) Read(id string) ([]byte, error) {
	start := time.Now()
	data, err := h.next.Read(id)
	h.metrics.observe("read", start, err)
	return data, err
}

func (h *InstrumentedHandler) Write(id string, data []byte) error {
	start := time.Now()
	err := h.next.Write(id, data)
	h.metrics.observe("write", start, err)
	return err
}

func (h *InstrumentedHandler) Destroy(id string) error {
	start := time.Now()
	err := h.next.Destroy(id)
	h.metrics.observe("destroy", start, err)
	return err
}

func (h *InstrumentedHandler) GC(maxLifetime time.Duration) (int, error) {
	start := time.Now()
	n, err := h.next.GC(maxLifetime)
	h.metrics.observe("gc", start, err)
	if n > 0 {
		h.metrics.GCRemoved.Add(float64(n))
	}
	return n, err
}

// ValidateID delegates to the decorated handler, accepting every id when
// it cannot validate ids.
func (h *InstrumentedHandler) ValidateID(id string) (bool, error) {
	if h.validator == nil {
		return true, nil
	}
	start := time.Now()
	ok, err := h.validator.ValidateID(id)
	h.metrics.observe("validate_id", start, err)
	return ok, err
}

// UpdateTimestamp delegates to the decorated handler, writing the data
// when it cannot refresh timestamps.
func (h *InstrumentedHandler) UpdateTimestamp(id string, data []byte) error {
	if h.updater == nil {
		return h.Write(id, data)
	}
	start := time.Now()
	err := h.updater.UpdateTimestamp(id, data)
	h.metrics.observe("update_timestamp", start, err)
	return err
}
