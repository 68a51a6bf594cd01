package doctor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatHuman renders a validation result for terminal output.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n",
			len(r.Errors), len(r.Warnings))
	}

	writeIssues(&b, "ERROR", r.Errors)
	writeIssues(&b, "WARN ", r.Warnings)
	return b.String()
}

func writeIssues(b *strings.Builder, label string, issues []Issue) {
	for _, issue := range issues {
		if issue.Field != "" {
			fmt.Fprintf(b, "  %s [%s] %s: %s\n", label, issue.Category, issue.Field, issue.Message)
			continue
		}
		fmt.Fprintf(b, "  %s [%s] %s\n", label, issue.Category, issue.Message)
	}
}

// FormatJSON renders a validation result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
