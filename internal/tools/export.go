package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cerplabs/memoryd/internal/store"
)

// exportedMemory is the portable shape one memory round-trips through;
// identity for round-trip comparison is (content, tags, source,
// memory_type, is_rule, project), deliberately excluding id and timestamps.
type exportedMemory struct {
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Source     string   `json:"source,omitempty"`
	Project    string   `json:"project,omitempty"`
	MemoryType string   `json:"memory_type,omitempty"`
	Importance float64  `json:"importance,omitempty"`
	IsRule     bool     `json:"is_rule,omitempty"`
}

// Export implements the export tool.
func (s *Service) Export(ctx context.Context, in *ExportInput) (*ExportOutput, error) {
	format := in.Format
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "markdown" {
		return nil, invalidParams("format must be json or markdown")
	}

	in.Project = s.projectID(in.Project)
	db, err := s.dbForProject(in.Project)
	if err != nil {
		return nil, err
	}

	memories, _, err := db.memories.List(ctx, store.MemoryFilter{
		ProjectID:       in.Project,
		IncludeArchived: true,
		Limit:           100000,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}
	tagsByMemory, err := db.tags.GetForMemories(ctx, ids)
	if err != nil {
		return nil, err
	}

	exported := make([]exportedMemory, 0, len(memories))
	for _, m := range memories {
		exported = append(exported, exportedMemory{
			Content:    m.Content,
			Tags:       tagsByMemory[m.ID],
			Source:     m.Source,
			Project:    m.ProjectID,
			MemoryType: m.MemoryType,
			Importance: m.ImportanceScore,
			IsRule:     m.IsRule,
		})
	}

	var data string
	if format == "markdown" {
		data = renderMarkdown(exported)
	} else {
		blob, err := json.Marshal(exported)
		if err != nil {
			return nil, invalidParams("marshal export data: %v", err)
		}
		data = string(blob)
	}

	return &ExportOutput{Data: data, Count: len(exported), Format: format}, nil
}

// Import implements the import tool. Only the json format round-trips;
// malformed data of any format is reported as {imported: 0, errors: 1}
// rather than raising.
func (s *Service) Import(ctx context.Context, in *ImportInput) (*ImportOutput, error) {
	format := in.Format
	if format == "" {
		format = "json"
	}
	if format != "json" {
		return &ImportOutput{Imported: 0, Errors: 1}, nil
	}

	var items []exportedMemory
	if err := json.Unmarshal([]byte(in.Data), &items); err != nil {
		return &ImportOutput{Imported: 0, Errors: 1}, nil
	}

	in.Project = s.projectID(in.Project)
	db, err := s.dbForProject(in.Project)
	if err != nil {
		return nil, err
	}

	out := &ImportOutput{}
	for _, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			out.Errors++
			continue
		}
		project := item.Project
		if in.Project != "" {
			project = in.Project
		}

		m := &store.Memory{
			Content:         item.Content,
			Source:          item.Source,
			ProjectID:       project,
			MemoryType:      item.MemoryType,
			ImportanceScore: item.Importance,
			IsRule:          item.IsRule,
		}
		if m.MemoryType == "" {
			m.MemoryType = store.MemoryTypeGeneral
		}
		if err := db.memories.Create(ctx, m); err != nil {
			out.Errors++
			continue
		}
		if len(item.Tags) > 0 {
			if err := db.tags.SetForMemory(ctx, m.ID, item.Tags); err != nil {
				out.Errors++
				continue
			}
		}
		if _, err := db.pipeline.RebuildChunks(ctx, m.ID, item.Content); err != nil {
			out.Errors++
			continue
		}
		out.Imported++
	}
	return out, nil
}

func renderMarkdown(items []exportedMemory) string {
	var b strings.Builder
	for i, m := range items {
		fmt.Fprintf(&b, "## Memory %d\n\n", i+1)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(m.Tags, ", "))
		}
		if m.Source != "" {
			fmt.Fprintf(&b, "Source: %s\n\n", m.Source)
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}
