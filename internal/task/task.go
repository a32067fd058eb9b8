package task

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Type identifies how a task's source is acquired.
type Type string

const (
	TypeFile Type = "file"
	TypeURL  Type = "url"
)

// ParseType normalizes a task type string.
func ParseType(value string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(value))) {
	case TypeFile:
		return TypeFile, nil
	case TypeURL:
		return TypeURL, nil
	default:
		return "", fmt.Errorf("unknown task type %q", value)
	}
}

// Task is one unit of work: a video reference plus what to do with its text.
// Tasks are immutable once constructed.
type Task struct {
	ID             string `json:"id"`
	Type           Type   `json:"type"`
	Source         string `json:"source"`
	Title          string `json:"title,omitempty"`
	TemplatePrompt string `json:"templatePrompt,omitempty"`
}

// New builds a task, assigning a random ID when id is empty.
func New(id string, typ Type, source, title, templatePrompt string) (Task, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Task{}, fmt.Errorf("task source is required")
	}
	switch typ {
	case TypeFile, TypeURL:
	default:
		return Task{}, fmt.Errorf("unknown task type %q", typ)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	return Task{
		ID:             id,
		Type:           typ,
		Source:         source,
		Title:          strings.TrimSpace(title),
		TemplatePrompt: strings.TrimSpace(templatePrompt),
	}, nil
}

// Infer picks TypeURL for http(s) sources and TypeFile otherwise.
func Infer(source string) Type {
	lower := strings.ToLower(strings.TrimSpace(source))
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return TypeURL
	}
	return TypeFile
}
