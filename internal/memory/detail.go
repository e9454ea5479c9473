// detail.go holds the shared constants and parsing behind the
// detail_level parameter accepted by the read-heavy memory tools.
//
// Three verbosity levels give the caller progressive disclosure:
//   - summary: ids, categories and metadata only
//   - standard: truncated content snippets
//   - full: complete untruncated content
package memory

import "fmt"

// Detail level constants.
const (
	DetailSummary  = "summary"
	DetailStandard = "standard"
	DetailFull     = "full"
)

// DetailLevelValues returns the enum values for MCP tool definitions so
// the list is not duplicated across tools.
func DetailLevelValues() []string {
	return []string{DetailSummary, DetailStandard, DetailFull}
}

// ParseDetailLevel normalizes a detail_level string, defaulting to
// "standard" for empty or unrecognized values.
func ParseDetailLevel(s string) string {
	switch s {
	case DetailSummary, DetailFull:
		return s
	default:
		return DetailStandard
	}
}

// SummaryFooter is appended to summary-mode responses to steer the
// caller toward fetching detail only when it is needed.
const SummaryFooter = "\n---\n💡 Use detail_level: standard or full for more detail."

// NavigationHint returns a one-line footer when results are capped by a
// limit. Empty when everything fit or there was nothing to show. The
// hint carries tool-specific guidance for getting the rest.
func NavigationHint(showing, total int, hint string) string {
	if total <= 0 || showing >= total {
		return ""
	}
	if hint != "" {
		return fmt.Sprintf("\n📊 Showing %d of %d. %s", showing, total, hint)
	}
	return fmt.Sprintf("\n📊 Showing %d of %d.", showing, total)
}

// EstimateTokens approximates the token count of a response with the
// chars/4 heuristic. Zero for empty strings, at least 1 otherwise.
func EstimateTokens(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	tokens := n / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TokenFooter renders the estimated context cost of a tool response.
func TokenFooter(estimatedTokens int) string {
	return fmt.Sprintf("\n📏 ~%s tokens", formatNumber(estimatedTokens))
}

// formatNumber formats an integer with comma separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	s := fmt.Sprintf("%d", n)
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}
