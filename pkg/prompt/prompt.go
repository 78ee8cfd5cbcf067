// Package prompt assembles the text sent to the model for each question.
// The reference document itself is never included here; the model reaches it
// through the pre-built context cache referenced on the call.
package prompt

import (
	"fmt"
	"strings"

	"github.com/chapterhouse/docbot/pkg/llm"
)

// DefaultInstructions is the answer contract sent with every question. It can
// be overridden with a template file at startup.
const DefaultInstructions = `Answer the question using the reference document you have been given.
Give detailed answers that a non-expert can follow, and cite the relevant
document chapters where they exist. Keep the answer under 2000 characters.
If the document does not cover the question, say so instead of guessing.`

// Builder renders per-request prompts from an instruction block, the
// caller-supplied conversation history, and the new question.
type Builder struct {
	instructions string
}

// NewBuilder returns a Builder using the given instruction block, falling
// back to DefaultInstructions when it is empty.
func NewBuilder(instructions string) *Builder {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	return &Builder{instructions: instructions}
}

// Build renders the prompt. History turns appear between the instructions
// and the question, oldest first, with their role labels exactly as supplied.
// An empty history yields only the instructions and the question.
func (b *Builder) Build(question string, history []llm.Message) string {
	var sb strings.Builder
	sb.WriteString(b.instructions)
	sb.WriteString("\n")

	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n")

	return sb.String()
}
