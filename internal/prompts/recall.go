// Package prompts implements the MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// RecallPrompt handles the memory-recall MCP prompt.
// It instructs the AI to pull stored knowledge into the conversation
// before doing any work.
type RecallPrompt struct{}

// NewRecallPrompt creates a RecallPrompt.
func NewRecallPrompt() *RecallPrompt {
	return &RecallPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *RecallPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("memory-recall",
		mcp.WithPromptDescription(
			"Recall stored project knowledge before starting work. "+
				"Searches the memory store for decisions, conventions, and "+
				"anti-patterns relevant to the current task.",
		),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Project to recall memories for (default: all projects)"),
		),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What you are about to work on; used as the search query"),
		),
	)
}

// Handle processes the memory-recall prompt request.
func (p *RecallPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	project := ""
	topic := ""
	if args := req.Params.Arguments; args != nil {
		project = args["project"]
		topic = args["topic"]
	}

	scopeLine := "across all projects"
	searchArgs := ""
	if project != "" {
		scopeLine = fmt.Sprintf("for project '%s'", project)
		searchArgs = fmt.Sprintf(" with project_id='%s'", project)
	}

	queryLine := "a query describing my current task (ask me if unclear)"
	if topic != "" {
		queryLine = fmt.Sprintf("query='%s'", topic)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Recall stored knowledge %s", scopeLine),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Before we start, recall what is already known %s.\n\n"+
						"Please:\n"+
						"1. Run `memory_search`%s with %s\n"+
						"2. Run `memory_tag` with action='search' and tag='anti-pattern' to surface known mistakes\n"+
						"3. Weave anything relevant into your plan instead of quoting it back verbatim\n"+
						"4. If a memory looks outdated, say so and suggest `memory_update`",
					scopeLine, searchArgs, queryLine,
				)),
			},
		},
	}, nil
}
