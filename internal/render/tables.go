package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/meshtap/meshtap/internal/aggregate"
	"github.com/meshtap/meshtap/internal/apiclient"
	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/correlate"
	"github.com/meshtap/meshtap/internal/tapevent"
)

// FormatTapTable renders correlated request rows, newest first. Wide
// mode adds the authority, scheme, byte count, grpc status and
// direction columns.
func FormatTapTable(rows []correlate.Row, wide bool) string {
	if len(rows) == 0 {
		return "(no requests observed yet)\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	if wide {
		fmt.Fprintln(w, "SRC\tDST\tMETHOD\tPATH\tAUTHORITY\tSCHEME\tSTATUS\tGRPC\tLATENCY\tBYTES\tTLS\tDIR\tSTATE")
	} else {
		fmt.Fprintln(w, "SRC\tDST\tMETHOD\tPATH\tSTATUS\tLATENCY\tTLS\tSTATE")
	}

	for i := range rows {
		row := &rows[i]
		if wide {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				row.Source().DisplayName(),
				row.Destination().DisplayName(),
				orDash(row.Method()),
				orDash(row.Path()),
				orDash(row.Authority()),
				orDash(row.Scheme()),
				statusCell(row),
				grpcCell(row),
				latencyCell(row),
				bytesCell(row),
				strconv.FormatBool(row.TLS()),
				string(row.Direction()),
				stateCell(row),
			)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Source().DisplayName(),
			row.Destination().DisplayName(),
			orDash(row.Method()),
			orDash(row.Path()),
			statusCell(row),
			latencyCell(row),
			strconv.FormatBool(row.TLS()),
			stateCell(row),
		)
	}
	_ = w.Flush()
	return b.String()
}

// FormatTopTable renders aggregated routes, most recently updated
// first. Sources outside the mesh are marked with "!" and listed in a
// footer. Wide mode adds the observed source and destination members.
func FormatTopTable(snap aggregate.Snapshot, limit int, wide bool) string {
	rows := snap.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) == 0 {
		return "(no completed requests yet)\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	if wide {
		fmt.Fprintln(w, "SOURCE\tDESTINATION\tMETHOD\tPATH\tCOUNT\tSUCCESS\tBEST\tWORST\tLAST\tSRC_MEMBERS\tDST_MEMBERS")
	} else {
		fmt.Fprintln(w, "SOURCE\tDESTINATION\tMETHOD\tPATH\tCOUNT\tSUCCESS\tBEST\tWORST\tLAST")
	}

	for i := range rows {
		row := &rows[i]
		source := row.Key.Source
		if !row.Meshed {
			source = "!" + source
		}
		if wide {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				source,
				row.Key.Destination,
				orDash(row.Key.Method),
				orDash(row.Key.Path),
				row.Count,
				formatRate(row.SuccessRate),
				formatMS(tapevent.LatencyMS(row.Best)),
				formatMS(tapevent.LatencyMS(row.Worst)),
				formatMS(tapevent.LatencyMS(row.Last)),
				strings.Join(row.SourceDisplay, ","),
				strings.Join(row.DestinationDisplay, ","),
			)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			source,
			row.Key.Destination,
			orDash(row.Key.Method),
			orDash(row.Key.Path),
			row.Count,
			formatRate(row.SuccessRate),
			formatMS(tapevent.LatencyMS(row.Best)),
			formatMS(tapevent.LatencyMS(row.Worst)),
			formatMS(tapevent.LatencyMS(row.Last)),
		)
	}
	_ = w.Flush()

	if len(snap.UnmeshedNeighbors) > 0 {
		b.WriteString("\n! unmeshed sources: ")
		b.WriteString(strings.Join(snap.UnmeshedNeighbors, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStatTable renders polled rollup stats for a resource type.
func FormatStatTable(rows []apiclient.StatRow) string {
	if len(rows) == 0 {
		return "(no resources found)\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMESHED\tRPS\tSUCCESS\tP50\tP95\tP99")
	for i := range rows {
		row := &rows[i]
		fmt.Fprintf(w, "%s\t%d/%d\t%.1f\t%s\t%s\t%s\t%s\n",
			row.Name,
			row.MeshedPods, row.TotalPods,
			row.RPS,
			formatRate(row.SuccessRate),
			formatMS(row.LatencyMSP50),
			formatMS(row.LatencyMSP95),
			formatMS(row.LatencyMSP99),
		)
	}
	_ = w.Flush()
	return b.String()
}

// FormatRouteTable renders polled per-route rollup stats.
func FormatRouteTable(rows []apiclient.RouteRow) string {
	if len(rows) == 0 {
		return "(no routes found)\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ROUTE\tAUTHORITY\tRPS\tSUCCESS\tP50\tP95\tP99")
	for i := range rows {
		row := &rows[i]
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\t%s\t%s\n",
			orDash(row.Route),
			orDash(row.Authority),
			row.RPS,
			formatRate(row.SuccessRate),
			formatMS(row.LatencyMSP50),
			formatMS(row.LatencyMSP95),
			formatMS(row.LatencyMSP99),
		)
	}
	_ = w.Flush()
	return b.String()
}

// FormatEdgeTable renders the observed source to destination edges.
func FormatEdgeTable(edges []apiclient.Edge) string {
	if len(edges) == 0 {
		return "(no edges found)\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SRC\tDST\tSRC_NS\tDST_NS\tCLIENT_ID\tSERVER_ID")
	for i := range edges {
		edge := &edges[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			edge.Source,
			edge.Destination,
			edge.SourceNamespace,
			edge.DestinationNamespace,
			orDash(edge.ClientIdentity),
			orDash(edge.ServerIdentity),
		)
	}
	_ = w.Flush()
	return b.String()
}

// FormatFilterOptions renders the observed filter values per dimension
// as a footer section.
func FormatFilterOptions(opts map[correlate.Dimension][]string) string {
	dims := make([]string, 0, len(opts))
	for dim, values := range opts {
		if len(values) > 0 {
			dims = append(dims, string(dim))
		}
	}
	if len(dims) == 0 {
		return ""
	}
	sort.Strings(dims)

	var b strings.Builder
	b.WriteString("Observed filter values:\n")
	for _, dim := range dims {
		b.WriteString(fmt.Sprintf("  %s: %s\n", dim, strings.Join(opts[correlate.Dimension(dim)], ", ")))
	}
	return b.String()
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(bytes uint64) string {
	if bytes < config.KB {
		return fmt.Sprintf("%d B", bytes)
	} else if bytes < config.MB {
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(config.KB))
	} else if bytes < config.GB {
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(config.MB))
	}
	return fmt.Sprintf("%.2f GB", float64(bytes)/float64(config.GB))
}

func formatMS(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%gms", ms)
}

func formatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*config.Percent100)
}

func statusCell(row *correlate.Row) string {
	status := row.HTTPStatus()
	if status == 0 {
		return "-"
	}
	return strconv.Itoa(status)
}

func grpcCell(row *correlate.Row) string {
	code := row.GRPCStatus()
	if code == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*code), 10)
}

func latencyCell(row *correlate.Row) string {
	if !row.Completed() {
		return "-"
	}
	d, err := row.Latency()
	if err != nil {
		return "-"
	}
	return formatMS(tapevent.LatencyMS(d))
}

func bytesCell(row *correlate.Row) string {
	if !row.Completed() {
		return "-"
	}
	return FormatBytes(row.ResponseBytes())
}

func stateCell(row *correlate.Row) string {
	if row.Completed() {
		return "complete"
	}
	return "partial"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
