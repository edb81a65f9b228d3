package retrieval

import "context"

// FallbackLogs tries each retriever in order and returns the first
// non-empty result.
type FallbackLogs []LogRetriever

func (f FallbackLogs) RecentLogs(ctx context.Context, namespace, pod string, limit int) string {
	for _, r := range f {
		if logs := r.RecentLogs(ctx, namespace, pod, limit); logs != "" {
			return logs
		}
	}
	return ""
}

// NoLogs is a LogRetriever that always returns "".
type NoLogs struct{}

func (NoLogs) RecentLogs(context.Context, string, string, int) string { return "" }
