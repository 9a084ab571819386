package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/chatsync/internal/metrics"
)

// printStats displays request statistics collected during this run.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\nStatistics (this run)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	ops := []struct {
		name string
		op   *metrics.OperationSnapshot
	}{
		{"Fetch history", snap.FetchHistory},
		{"Persist message", snap.PersistMessage},
		{"Push emit", snap.PushEmit},
		{"Push receive", snap.PushReceive},
		{"Store query", snap.StoreQuery},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", o.name)
		printOpStats(w, o.op)
	}

	for _, route := range snap.Routes() {
		fmt.Fprintf(w, "\n%s:\n", route)
		printOpStats(w, snap.Requests[route])
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Failed: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
