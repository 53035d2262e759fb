package research

import (
	"fmt"
	"strings"
)

const decomposeSystemPrompt = "You are a research assistant. Given a research query, " +
	"decompose it into 3-5 specific search queries that will " +
	"help gather comprehensive information. Return JSON: " +
	`{"queries": ["query1", "query2", ...]}.`

const analyzeSystemPrompt = "You are a research analyst. Given a research query and findings so far, " +
	"decide if more research is needed. Return JSON with: " +
	`{"needs_more_research": bool, "follow_up_queries": ["..."], ` +
	`"key_findings": "summary of key findings so far"}.`

const reportSystemPrompt = "You are a research report writer. Given a research query and " +
	"gathered findings, produce a comprehensive, well-structured " +
	"Markdown report. Include an executive summary, key findings, " +
	"detailed analysis, and references. Make it thorough and insightful."

func analyzeUserPrompt(query string, findings []Finding) string {
	return fmt.Sprintf("Original query: %s\n\nFindings so far:\n%s", query, joinFindings(findings))
}

func reportUserPrompt(query string, findings []Finding) string {
	return fmt.Sprintf("Research query: %s\n\nGathered findings:\n%s", query, joinFindings(findings))
}

func joinFindings(findings []Finding) string {
	parts := make([]string, len(findings))
	for i, f := range findings {
		parts[i] = f.String()
	}
	return strings.Join(parts, "\n\n")
}
