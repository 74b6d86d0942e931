package session

import "time"

const userHandlerName = "user"

// HandlerProxy normalizes a Handler into one capability surface used by
// Storage. Optional operations the handler does not support degrade to
// permissive or heavier equivalents. The proxy performs no retries:
// handler errors are returned as they are.
type HandlerProxy struct {
	handler      Handler
	validator    IDValidator
	updater      TimestampUpdater
	capabilities Capabilities
	name         string
}

// ProxyOption configures a HandlerProxy.
type ProxyOption func(*HandlerProxy)

// WithCapabilities overrides the capabilities detected from the handler.
func WithCapabilities(c Capabilities) ProxyOption {
	return func(p *HandlerProxy) {
		p.capabilities = c
	}
}

// WithNativeWrapper marks the handler as a passthrough to a platform
// handler named name. (default "user", not a wrapper.)
func WithNativeWrapper(name string) ProxyOption {
	return func(p *HandlerProxy) {
		p.capabilities.NativeWrapper = true
		p.name = name
	}
}

// NewHandlerProxy wraps h. Capabilities are computed once here and never
// change for the lifetime of the proxy.
func NewHandlerProxy(h Handler, opts ...ProxyOption) *HandlerProxy {
	p := &HandlerProxy{
		handler:      h,
		capabilities: DetectCapabilities(h),
		name:         userHandlerName,
	}
	p.validator, _ = h.(IDValidator)
	p.updater, _ = h.(TimestampUpdater)

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Handler returns the wrapped handler.
func (p *HandlerProxy) Handler() Handler {
	return p.handler
}

// Capabilities returns the capabilities of the wrapped handler.
func (p *HandlerProxy) Capabilities() Capabilities {
	return p.capabilities
}

// IsWrapper reports whether the wrapped handler is a platform passthrough.
func (p *HandlerProxy) IsWrapper() bool {
	return p.capabilities.NativeWrapper
}

// SaveHandlerName returns the diagnostic name of the wrapped handler.
func (p *HandlerProxy) SaveHandlerName() string {
	return p.name
}

func (p *HandlerProxy) Open(savePath, name string) error {
	return p.handler.Open(savePath, name)
}

func (p *HandlerProxy) Close() error {
	return p.handler.Close()
}

func (p *HandlerProxy) Read(id string) ([]byte, error) {
	data, err := p.handler.Read(id)
	if data == nil {
		data = []byte{}
	}
	return data, err
}

func (p *HandlerProxy) Write(id string, data []byte) error {
	return p.handler.Write(id, data)
}

func (p *HandlerProxy) Destroy(id string) error {
	return p.handler.Destroy(id)
}

func (p *HandlerProxy) GC(maxLifetime time.Duration) (int, error) {
	return p.handler.GC(maxLifetime)
}

// ValidateID reports whether id may be used to read an existing record.
// Handlers that cannot validate ids accept every id.
func (p *HandlerProxy) ValidateID(id string) (bool, error) {
	if !p.capabilities.ValidateID || p.validator == nil {
		return true, nil
	}
	return p.validator.ValidateID(id)
}

// UpdateTimestamp refreshes the expiration of the record stored under id.
// Handlers that cannot do so get a full Write, which refreshes it as well.
func (p *HandlerProxy) UpdateTimestamp(id string, data []byte) error {
	if !p.capabilities.UpdateTimestamp || p.updater == nil {
		return p.Write(id, data)
	}
	return p.updater.UpdateTimestamp(id, data)
}
