package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// BriefPrompt handles the memory-brief MCP prompt.
// It instructs the AI to summarize the state of the memory store.
type BriefPrompt struct{}

// NewBriefPrompt creates a BriefPrompt.
func NewBriefPrompt() *BriefPrompt {
	return &BriefPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *BriefPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("memory-brief",
		mcp.WithPromptDescription(
			"Get a briefing on what the memory store holds: totals, "+
				"categories, projects, and the most recent additions.",
		),
	)
}

// Handle processes the memory-brief prompt request.
func (p *BriefPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Memory store briefing",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Give me a briefing on the memory store.\n\n" +
						"Please:\n" +
						"1. Run `memory_stats` and present the totals in a compact table\n" +
						"2. Run `memory_list` with limit=10 and detail_level='summary' for the newest entries\n" +
						"3. Point out categories that look stale or overloaded\n" +
						"4. Suggest `memory_cleanup` if the store looks like it needs it",
				),
			},
		},
	}, nil
}
