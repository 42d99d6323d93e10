package ratelimit

// Tool categories with their own leaky bucket.
const (
	CategoryDeepSeekQuery = "deepseek_query"
	CategoryFileAnalysis  = "file_analysis"
	CategoryGeneral       = "general"
	CategoryExempt        = "exempt"
)

// Category maps a tool name to its rate-limit category. Status tools are
// exempt; unknown tools fall into the general category, which has no
// bucket.
func Category(tool string) string {
	switch tool {
	case "enhanced_query_deepseek", "query_deepseek":
		return CategoryDeepSeekQuery
	case "analyze_files", "youtu_agent_analyze_files":
		return CategoryFileAnalysis
	case "check_deepseek_status", "health":
		return CategoryExempt
	default:
		return CategoryGeneral
	}
}
