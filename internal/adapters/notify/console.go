package notify

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/latencybot/internal/domain"
	"github.com/alejandrodnm/latencybot/internal/obs"
	"github.com/alejandrodnm/latencybot/internal/ports"
)

var _ ports.Notifier = (*Console)(nil)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// PrintSummary imprime el estado final de cada mercado.
func (c *Console) PrintSummary(markets []domain.MarketSnapshot) {
	now := time.Now().Format("15:04:05")
	if len(markets) == 0 {
		fmt.Fprintf(c.out, "[%s] no markets configured\n", now)
		return
	}

	var totalPos, totalCap float64
	for _, m := range markets {
		totalPos += m.Position
		totalCap += m.MaxPosition
	}

	if !c.table {
		c.printCompact(now, markets, totalPos, totalCap)
		return
	}

	fmt.Fprintf(c.out, "\n[%s] %d markets, exposure $%.2f / $%.2f\n", now, len(markets), totalPos, totalCap)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Symbol", "Phase", "Reference", "Position", "Max", "Used", "Last trade")
	for i, m := range markets {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(m.MarketID, 30),
			m.Symbol,
			string(m.Phase),
			formatReference(m),
			fmt.Sprintf("$%.2f", m.Position),
			fmt.Sprintf("$%.2f", m.MaxPosition),
			fmt.Sprintf("%.1f%%", pct(m.Position, m.MaxPosition)),
			formatLastTrade(m.LastTradeAt),
		)
	}
	table.Render()
}

// printCompact imprime una línea por mercado.
func (c *Console) printCompact(now string, markets []domain.MarketSnapshot, totalPos, totalCap float64) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts exp $%.2f/$%.2f", now, len(markets), totalPos, totalCap)
	for _, m := range markets {
		fmt.Fprintf(&sb, " | %s %s ref %s pos $%.2f",
			truncate(m.MarketID, 20), m.Phase, formatReference(m), m.Position)
	}
	fmt.Fprintln(c.out, sb.String())
}

// PrintStats imprime los contadores del proceso.
func (c *Console) PrintStats(s obs.Snapshot) {
	fmt.Fprintf(c.out, "\n=== RUN STATS (uptime %s) ===\n", s.Uptime.Round(time.Second))
	fmt.Fprintf(c.out, "  ticks: %d  triggers: %d  reconnects: %d\n", s.Ticks, s.Triggers, s.Reconnects)
	fmt.Fprintf(c.out, "  orders: %d placed, %d failed  quote errors: %d\n", s.OrdersPlaced, s.OrdersFailed, s.QuoteErrors)
	if s.OrderLatency.Count > 0 {
		fmt.Fprintf(c.out, "  order latency: avg %s  min %s  max %s\n",
			s.OrderLatency.Avg.Round(time.Millisecond),
			s.OrderLatency.Min.Round(time.Millisecond),
			s.OrderLatency.Max.Round(time.Millisecond))
	}

	if len(s.Outcomes) == 0 {
		return
	}
	keys := make([]string, 0, len(s.Outcomes))
	for k := range s.Outcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.Outcomes[k]))
	}
	fmt.Fprintf(c.out, "  outcomes: %s\n", strings.Join(parts, " "))
}

func formatReference(m domain.MarketSnapshot) string {
	if m.Phase == domain.PhaseUninitialized {
		return "-"
	}
	return fmt.Sprintf("%.2f", m.ReferencePrice)
}

func formatLastTrade(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("15:04:05")
}

func pct(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
