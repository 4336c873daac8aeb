package transport

// Middleware decorates an Analyzer. Surfaces apply the same chain so that
// HTTP and MCP calls are recovered, tagged and logged alike.
type Middleware func(Analyzer) Analyzer

// Chain composes middleware; the first one is the outermost wrapper, so
// Chain(a, b)(x) == a(b(x)).
func Chain(middlewares ...Middleware) Middleware {
	return func(next Analyzer) Analyzer {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
