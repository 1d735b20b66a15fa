package store

import (
	"go.opentelemetry.io/otel/trace"
)

// Sink receives devtools events.
type Sink interface {
	Emit(event string, payload any)
}

// Devtools event names.
const (
	EventInit     = "store:init"
	EventMutation = "store:mutation"
	EventError    = "store:error"
)

// MutationRecord is the payload of a store:mutation event. State is a deep
// copy taken right after the mutation.
type MutationRecord struct {
	Mutation Mutation
	State    State
}

// Plugin is called once at the end of New.
type Plugin func(s *Store)

// Option configures a Store.
type Option func(*options)

type options struct {
	strict   bool
	caching  bool
	plugins  []Plugin
	devtools Sink
	tracer   trace.Tracer
}

func defaultOptions() options {
	return options{caching: true}
}

// WithStrict enables strict mode: any change to the state tree made outside
// a mutation handler panics at the next store call.
func WithStrict(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithPlugins appends plugins, run in order at the end of New.
func WithPlugins(plugins ...Plugin) Option {
	return func(o *options) { o.plugins = append(o.plugins, plugins...) }
}

// WithDevtools attaches a sink. Its plugin runs after every other plugin.
func WithDevtools(sink Sink) Option {
	return func(o *options) { o.devtools = sink }
}

// WithTracer records a span per commit, dispatch and module operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

// WithGetterCache toggles getter caching. With caching off every read
// re-runs the getter.
func WithGetterCache(enabled bool) Option {
	return func(o *options) { o.caching = enabled }
}

// WatchOption configures Watch.
type WatchOption func(*watchOptions)

type watchOptions struct {
	immediate bool
}

// Immediate runs the watch callback once on registration.
func Immediate() WatchOption {
	return func(o *watchOptions) { o.immediate = true }
}
