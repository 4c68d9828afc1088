package server

import (
	"fmt"
	"io"
	"mesh_relay/internal/dataType"
	"strings"
)

const tableWidth = 80

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func priorityLabel(p dataType.Priority) string {
	switch p {
	case dataType.PriorityHigh:
		return "HIGH (!)"
	case dataType.PriorityLow:
		return "LOW"
	case "":
		return "MEDIUM"
	default:
		return string(p)
	}
}

// wrapText breaks s on spaces into lines of at most width bytes.
func wrapText(s string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(s) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

func writeMessageTable(w io.Writer, m dataType.Message, n int) {
	rule := strings.Repeat("=", tableWidth)
	fmt.Fprintf(w, "\n%s\n%*s\n%s\n", rule, (tableWidth+len(fmt.Sprintf("MESSAGE #%d", n)))/2, fmt.Sprintf("MESSAGE #%d", n), rule)
	row := func(k, v string) {
		fmt.Fprintf(w, "| %-20s | %-53s |\n", k, v)
	}
	row("Message ID", orDefault(m.MessageID, "N/A"))
	row("Sender Name", orDefault(m.SenderName, "Unknown"))
	row("Location", orDefault(m.Location, "Unknown"))
	row("Priority", priorityLabel(m.Priority))
	row("Timestamp", orDefault(m.Timestamp, "N/A"))
	fmt.Fprintf(w, "+%s+\n", strings.Repeat("-", tableWidth-2))
	text := orDefault(m.MessageText, "N/A")
	for _, line := range wrapText(text, tableWidth-4) {
		fmt.Fprintf(w, "| %-*s |\n", tableWidth-4, line)
	}
	fmt.Fprintf(w, "+%s+\n", strings.Repeat("-", tableWidth-2))
}

func writeStatistics(w io.Writer, messages []dataType.Message) {
	if len(messages) == 0 {
		return
	}
	stats := countByPriority(messages)
	rule := strings.Repeat("-", tableWidth)
	fmt.Fprintf(w, "\n%s\nSTATISTICS:\n%s\n", rule, rule)
	fmt.Fprintf(w, "  Total Messages Received: %d\n", len(messages))
	fmt.Fprintf(w, "  HIGH Priority:           %d\n", stats[dataType.PriorityHigh])
	fmt.Fprintf(w, "  MEDIUM Priority:         %d\n", stats[dataType.PriorityMedium])
	fmt.Fprintf(w, "  LOW Priority:            %d\n", stats[dataType.PriorityLow])
	fmt.Fprintf(w, "%s\n\n", rule)
}
