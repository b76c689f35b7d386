// Package agents implements the subagent framework: small composable
// capabilities that can be invoked by name from the chat API. The built-in
// agents are static template responders; they do no retrieval or reasoning.
package agents

import (
	"context"
	"fmt"
	"strings"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the standard result shape for every subagent invocation.
type Response struct {
	Status   string                 `json:"status"`
	Result   interface{}            `json:"result"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    string                 `json:"error,omitempty"`
}

// Agent is a named capability invokable with a query and optional context.
type Agent interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, query string, contextMap map[string]interface{}) Response
	Metadata() map[string]interface{}
}

// DocumentSearchAgent returns canned textbook hits for a search query.
type DocumentSearchAgent struct{}

// NewDocumentSearchAgent creates the document search agent.
func NewDocumentSearchAgent() *DocumentSearchAgent {
	return &DocumentSearchAgent{}
}

// Name returns the agent identifier.
func (a *DocumentSearchAgent) Name() string { return "document_search" }

// Description returns a human-readable description.
func (a *DocumentSearchAgent) Description() string {
	return "Searches the AI Robotics Textbook for relevant documents and context"
}

// Invoke returns two template documents with fixed scores.
func (a *DocumentSearchAgent) Invoke(ctx context.Context, query string, contextMap map[string]interface{}) Response {
	documents := []map[string]interface{}{
		{
			"id":     "doc_001",
			"title":  "Introduction to Robotics",
			"text":   "Robotics is the field of engineering and computer science focused on designing, building, and operating robots.",
			"score":  0.95,
			"source": "Chapter 1: Fundamentals",
		},
		{
			"id":     "doc_002",
			"title":  "Humanoid Robots",
			"text":   "Humanoid robots are designed to resemble human form and behavior, with two arms, two legs, and a torso.",
			"score":  0.87,
			"source": "Chapter 5: Humanoid Robotics",
		},
	}

	return Response{
		Status: StatusSuccess,
		Result: documents,
		Metadata: map[string]interface{}{
			"agent":               a.Name(),
			"search_query":        query,
			"documents_retrieved": len(documents),
			"top_scores":          []float64{0.95, 0.87},
		},
	}
}

// Metadata describes the agent for the discovery endpoint.
func (a *DocumentSearchAgent) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"name":         a.Name(),
		"description":  a.Description(),
		"capabilities": []string{"document_search", "context_retrieval", "semantic_ranking"},
	}
}

// CodeAgent returns template code snippets keyed by the query's first word.
type CodeAgent struct {
	snippets map[string]string
}

// NewCodeAgent creates the code generation agent.
func NewCodeAgent() *CodeAgent {
	return &CodeAgent{
		snippets: map[string]string{
			"robot": `
# Basic Robot Class
class Robot:
    def __init__(self, name: str, dof: int):
        self.name = name
        self.degrees_of_freedom = dof
        self.position = [0, 0, 0]

    def move(self, x: float, y: float, z: float):
        self.position = [x, y, z]
        print(f"{self.name} moved to {self.position}")
`,
			"humanoid": `
# Humanoid Robot Class
class HumanoidRobot:
    def __init__(self, name: str):
        self.name = name
        self.arms = {"left": [], "right": []}
        self.legs = {"left": [], "right": []}

    def walk(self, steps: int):
        print(f"{self.name} walking {steps} steps")

    def pick_up(self, object_name: str):
        print(f"{self.name} picking up {object_name}")
`,
			"motion": `
# Motion Planning Example
import numpy as np

def plan_path(start, goal, obstacles):
    '''Simple RRT-based path planning'''
    path = [start]
    current = start
    while np.linalg.norm(np.array(current) - np.array(goal)) > 0.1:
        random_point = np.random.rand(3)
        current = move_towards(current, random_point, 0.1)
        path.append(current)
    path.append(goal)
    return path
`,
		},
	}
}

// Name returns the agent identifier.
func (a *CodeAgent) Name() string { return "code_agent" }

// Description returns a human-readable description.
func (a *CodeAgent) Description() string {
	return "Generates Python code snippets for robotics applications"
}

// Invoke matches the first word of the query against the snippet table.
func (a *CodeAgent) Invoke(ctx context.Context, query string, contextMap map[string]interface{}) Response {
	code := "# No code available"
	if fields := strings.Fields(strings.ToLower(query)); len(fields) > 0 {
		if snippet, ok := a.snippets[fields[0]]; ok {
			code = snippet
		}
	}

	return Response{
		Status: StatusSuccess,
		Result: map[string]interface{}{"code": code},
		Metadata: map[string]interface{}{
			"agent":    a.Name(),
			"query":    query,
			"language": "python",
			"type":     "template",
		},
	}
}

// Metadata describes the agent for the discovery endpoint.
func (a *CodeAgent) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"name":         a.Name(),
		"description":  a.Description(),
		"capabilities": []string{"code_generation", "template_synthesis", "python_support"},
	}
}

// CitationAgent formats citations for the documents present in the
// invocation context under the "documents" key.
type CitationAgent struct{}

// NewCitationAgent creates the citation formatting agent.
func NewCitationAgent() *CitationAgent {
	return &CitationAgent{}
}

// Name returns the agent identifier.
func (a *CitationAgent) Name() string { return "citation_agent" }

// Description returns a human-readable description.
func (a *CitationAgent) Description() string {
	return "Formats citations and manages references from the textbook"
}

// Invoke produces footnote, inline and full citation formats per document.
func (a *CitationAgent) Invoke(ctx context.Context, query string, contextMap map[string]interface{}) Response {
	citations := []map[string]interface{}{}

	if contextMap != nil {
		if docs, ok := contextMap["documents"].([]map[string]interface{}); ok {
			for _, doc := range docs {
				id := stringOrDefault(doc, "id", "unknown")
				title := stringOrDefault(doc, "title", "Untitled")
				source := stringOrDefault(doc, "source", "Unknown")

				citations = append(citations, map[string]interface{}{
					"id":     id,
					"title":  title,
					"source": source,
					"format": map[string]string{
						"footnote": fmt.Sprintf("[%s]", source),
						"inline":   fmt.Sprintf("%s (pg. 1-50)", source),
						"full":     fmt.Sprintf("%s. From %s", title, source),
					},
				})
			}
		}
	}

	return Response{
		Status: StatusSuccess,
		Result: map[string]interface{}{"citations": citations},
		Metadata: map[string]interface{}{
			"agent":           a.Name(),
			"total_citations": len(citations),
			"formats":         []string{"footnote", "inline", "full"},
		},
	}
}

// Metadata describes the agent for the discovery endpoint.
func (a *CitationAgent) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"name":         a.Name(),
		"description":  a.Description(),
		"capabilities": []string{"citation_formatting", "reference_management", "footnotes"},
	}
}

func stringOrDefault(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}
