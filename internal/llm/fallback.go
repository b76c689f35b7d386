package llm

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// FallbackEntry is one keyword-to-answer pair in the offline knowledge base.
type FallbackEntry struct {
	Keyword string
	Answer  string
}

// FallbackKB is the static keyword-matched knowledge base consulted when
// every networked provider fails. Matching is first-match-wins over the
// declared order, so the order of entries is part of the behavior.
type FallbackKB struct {
	entries []FallbackEntry
}

// defaultFallbackEntries holds the built-in robotics knowledge base.
// "humanoid" is declared before "robot" so a humanoid question gets the
// humanoid answer even though it also contains "robot".
var defaultFallbackEntries = []FallbackEntry{
	{
		Keyword: "humanoid",
		Answer:  "Humanoid robots are robots designed to resemble and function like humans. They typically have two arms, two legs, a torso, and a head, enabling them to navigate human environments and interact naturally with people.",
	},
	{
		Keyword: "robot",
		Answer:  "A robot is an autonomous or semi-autonomous machine designed to perform tasks. Robots can vary from industrial manufacturing systems to humanoid robots that mimic human movement and interaction.",
	},
	{
		Keyword: "degree",
		Answer:  "Degrees of freedom (DOF) refer to the number of independent movements a robot can make. For example, a robot arm with 6 DOF can move in 3D space and rotate around 3 axes.",
	},
	{
		Keyword: "perception",
		Answer:  "Robot perception involves using sensors (cameras, LIDAR, tactile sensors) to understand the environment. This enables robots to locate objects, detect obstacles, and interact safely with their surroundings.",
	},
	{
		Keyword: "motion",
		Answer:  "Motion planning is the process of computing a path for a robot to move from one position to another while avoiding obstacles. Common algorithms include RRT (Rapidly-exploring Random Tree) and A*.",
	},
	{
		Keyword: "learning",
		Answer:  "Deep learning enables robots to process visual and sensor data to recognize patterns, objects, and behaviors. Convolutional Neural Networks (CNNs) are commonly used for vision tasks.",
	},
	{
		Keyword: "application",
		Answer:  "Robotics applications range from manufacturing, healthcare, agriculture, exploration, entertainment, and service industries. Robots increase efficiency, safety, and enable tasks in hazardous environments.",
	},
}

// NewFallbackKB builds a knowledge base from the given entries, or the
// built-in robotics entries when none are supplied.
func NewFallbackKB(entries []FallbackEntry) *FallbackKB {
	if len(entries) == 0 {
		entries = defaultFallbackEntries
	}
	return &FallbackKB{entries: entries}
}

// LoadFallbackKB reads an ordered YAML mapping of keyword to answer. The file
// order is preserved, which is why this decodes into a yaml.MapSlice rather
// than a map.
func LoadFallbackKB(path string) (*FallbackKB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback KB file: %w", err)
	}

	var pairs yaml.MapSlice
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse fallback KB file: %w", err)
	}

	entries := make([]FallbackEntry, 0, len(pairs))
	for _, pair := range pairs {
		keyword, ok := pair.Key.(string)
		if !ok || keyword == "" {
			return nil, fmt.Errorf("fallback KB keys must be non-empty strings, got %v", pair.Key)
		}
		answer, ok := pair.Value.(string)
		if !ok || answer == "" {
			return nil, fmt.Errorf("fallback KB entry %q must map to a non-empty string", keyword)
		}
		entries = append(entries, FallbackEntry{Keyword: keyword, Answer: answer})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("fallback KB file %s contains no entries", path)
	}

	return &FallbackKB{entries: entries}, nil
}

// Respond returns the answer for the first keyword contained in the
// lowercased query, or a templated echo of the query when nothing matches.
func (kb *FallbackKB) Respond(query string) string {
	queryLower := strings.ToLower(query)
	for _, entry := range kb.entries {
		if strings.Contains(queryLower, entry.Keyword) {
			return entry.Answer
		}
	}
	return fmt.Sprintf("I'm an AI assistant for the AI Robotics Textbook. (Fallback) Your question: '%s'", query)
}

// Entries returns a copy of the ordered entry list.
func (kb *FallbackKB) Entries() []FallbackEntry {
	out := make([]FallbackEntry, len(kb.entries))
	copy(out, kb.entries)
	return out
}
