// Package demoplan reads a demo plan description from YAML and builds it
// against the construction API of internal/plan. It deliberately lives
// outside the core: the plan store itself has no notion of a wire format
// or file layout, only the programmatic AddTask/DependsOn surface.
package demoplan

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/dagu-org/taskkernel/internal/plan"
)

// Doc is the on-disk shape of a demo plan file.
type Doc struct {
	Tasks     []TaskDoc `yaml:"tasks"`
	DependsOn [][2]string `yaml:"depends_on"`
	ScheduleAs [][2]string `yaml:"schedule_as"`
	PlannedBy [][2]string `yaml:"planned_by"`
}

// TaskDoc describes one task by its demo-file-local name.
type TaskDoc struct {
	Name       string         `yaml:"name"`
	Executable bool           `yaml:"executable"`
	Args       map[string]any `yaml:"args"`
}

// Load parses a demo plan file at path without building anything, for use
// by `validate`.
func Load(path string) (Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Doc{}, fmt.Errorf("read demo plan %s: %w", path, err)
	}
	var doc Doc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Doc{}, fmt.Errorf("parse demo plan %s: %w", path, err)
	}
	return doc, nil
}

// Validate checks a parsed doc for structural errors: duplicate task names
// and relations referencing an undeclared name.
func Validate(doc Doc) error {
	names := make(map[string]bool, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task with empty name")
		}
		if names[t.Name] {
			return fmt.Errorf("duplicate task name %q", t.Name)
		}
		names[t.Name] = true
	}
	for _, rel := range [][][2]string{doc.DependsOn, doc.ScheduleAs, doc.PlannedBy} {
		for _, pair := range rel {
			if !names[pair[0]] {
				return fmt.Errorf("relation references undeclared task %q", pair[0])
			}
			if !names[pair[1]] {
				return fmt.Errorf("relation references undeclared task %q", pair[1])
			}
		}
	}
	return nil
}

// Build constructs a fresh plan.Plan from doc, wiring every task and
// relation it declares, and returns the plan plus the name-to-id mapping
// used to build it.
func Build(doc Doc) (*plan.Plan, map[string]plan.TaskID, error) {
	if err := Validate(doc); err != nil {
		return nil, nil, err
	}

	p := plan.New()
	ids := make(map[string]plan.TaskID, len(doc.Tasks))
	for _, t := range doc.Tasks {
		id, err := p.AddTask(t.Args, t.Executable)
		if err != nil {
			return nil, nil, fmt.Errorf("add task %q: %w", t.Name, err)
		}
		ids[t.Name] = id
	}

	for _, pair := range doc.DependsOn {
		if err := p.DependsOn(ids[pair[0]], ids[pair[1]]); err != nil {
			return nil, nil, fmt.Errorf("depends_on %s -> %s: %w", pair[0], pair[1], err)
		}
	}
	for _, pair := range doc.ScheduleAs {
		if err := p.ScheduleAs(ids[pair[0]], ids[pair[1]]); err != nil {
			return nil, nil, fmt.Errorf("schedule_as %s, %s: %w", pair[0], pair[1], err)
		}
	}
	for _, pair := range doc.PlannedBy {
		if err := p.PlannedBy(ids[pair[0]], ids[pair[1]]); err != nil {
			return nil, nil, fmt.Errorf("planned_by %s -> %s: %w", pair[0], pair[1], err)
		}
	}

	return p, ids, nil
}
