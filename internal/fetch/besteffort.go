package fetch

import "log/slog"

// BestEffort runs a catalog or probe call and collapses any failure into
// the zero value. Lookup failures must surface as absent results, never as
// errors, so the fallback chain keeps trying the next source.
func BestEffort[T any](source string, fn func() (T, error)) T {
	result, err := fn()
	if err != nil {
		slog.Debug("Best-effort call failed", "source", source, "error", err)
		var zero T
		return zero
	}
	return result
}
