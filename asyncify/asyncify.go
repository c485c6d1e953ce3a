package asyncify

import (
	"go.uber.org/zap"

	"github.com/electronicarts/ea-async/asyncify/internal/engine"
	"github.com/electronicarts/ea-async/bytecode"
)

// ClassLoader resolves classes a unit references but does not declare.
// The second result is false for unknown classes.
type ClassLoader = bytecode.ClassResolver

// ErrorSink receives user-facing diagnostics, such as an await in a
// function that does not return a Future.
type ErrorSink func(msg string)

// ErrUnchanged is returned by Transform when the unit has no function to
// rewrite. The input is still valid and may be used as is.
var ErrUnchanged = engine.ErrUnchanged

type options struct {
	matcher SuspendMatcher
	exclude FunctionMatcher
	logger  *zap.Logger
	verify  bool
}

// Option configures Transform.
type Option func(*options)

// WithMatcher sets the matcher deciding which calls are suspend
// intrinsics. The default matches async/Await.await.
func WithMatcher(m SuspendMatcher) Option {
	return func(o *options) { o.matcher = m }
}

// WithExclude leaves the functions m matches untransformed.
func WithExclude(m FunctionMatcher) Option {
	return func(o *options) { o.exclude = m }
}

// WithLogger overrides the package logger for one call.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVerify turns re-verification of the emitted code on or off. It is
// on by default.
func WithVerify(v bool) Option {
	return func(o *options) { o.verify = v }
}

// Transform rewrites every function of an encoded unit that calls a
// suspend intrinsic into a resumable state machine.
//
// Each such function keeps its name and signature and gets a companion
// continuation named after it with the "$async" suffix, appended to the
// function table. The rewritten function completes synchronously when
// every awaited future is already done; otherwise it hands its state to
// the runtime and returns a pending future.
//
// A function whose suspend calls cannot be transformed is reported to
// sink and left as is. Malformed input is reported to sink and returned
// as a decode error. When no function needs rewriting, Transform returns
// ErrUnchanged.
//
// loader and sink may be nil.
func Transform(loader ClassLoader, data []byte, sink ErrorSink, opts ...Option) ([]byte, error) {
	o := options{matcher: DefaultMatcher, verify: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}

	eng := engine.New(engine.Config{
		Matcher: o.matcher,
		Exclude: o.exclude,
		Loader:  loader,
		Logger:  o.logger,
		Sink:    sink,
		Verify:  o.verify,
	})
	return eng.Transform(data)
}

// IsTransformed reports whether an encoded unit already went through
// Transform. Malformed input is reported as not transformed.
func IsTransformed(data []byte) bool {
	u, err := bytecode.ParseUnit(data)
	if err != nil {
		return false
	}
	for i := range u.Functions {
		if u.Functions[i].IsTransformed() || u.Functions[i].IsContinuation() {
			return true
		}
	}
	return false
}
