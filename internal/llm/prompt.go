package llm

import (
	"fmt"
	"strings"
)

const noContextSentence = "No context from textbook available."

const systemPromptTemplate = `You are an AI assistant specialized in physical AI and humanoid robotics.
You have access to the AI Robotics Textbook content.

When answering questions:
1. Use the provided context from the textbook
2. Be accurate and cite specific sections when relevant
3. Explain concepts clearly for both beginners and advanced readers
4. If the information is not in the context, indicate that it's beyond the textbook scope
5. Provide code examples when relevant
6. Be concise but thorough

Context from the textbook:
%s`

const selectionPromptTemplate = `You are an AI assistant specialized in physical AI and humanoid robotics.
A user has selected the following text from the AI Robotics Textbook and asked a question about it:

SELECTED TEXT:
%s

Answer the user's question based on this selected text and your knowledge of robotics.
Be specific and reference the selected text in your answer.`

// buildContextBlock renders every retrieved document as
// "Source: <source>\n<text>" blocks joined by blank lines. The retrieval
// step already bounds how many documents arrive here. An empty document
// list yields a fixed no-context sentence so the system prompt never embeds
// an empty block.
func buildContextBlock(docs []Document) string {
	if len(docs) == 0 {
		return noContextSentence
	}

	blocks := make([]string, 0, len(docs))
	for _, doc := range docs {
		source := doc.Source
		if source == "" {
			source = "Unknown"
		}
		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", source, doc.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// buildSystemPrompt renders the robotics-assistant instruction with the
// retrieved context substituted in.
func buildSystemPrompt(contextBlock string) string {
	return fmt.Sprintf(systemPromptTemplate, contextBlock)
}

// buildSelectionPrompt renders the instruction for selection-based questions,
// embedding the selected passage verbatim.
func buildSelectionPrompt(selectedText string) string {
	return fmt.Sprintf(selectionPromptTemplate, selectedText)
}
