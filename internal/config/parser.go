package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// ParseActionFile loads and schema-validates one actions/*.yaml document,
// stamping every ActionConfig with the source line/column of its mapping
// node so later validation failures can render a caret-marked snippet.
func ParseActionFile(path string) (*ActionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.NewCoreError(coreerrors.KindFilesystem, fmt.Sprintf("read %s", path), err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, parseErrorAt(path, err)
	}
	if len(root.Content) == 0 {
		return &ActionFile{}, nil
	}

	doc := root.Content[0]
	actionsNode := mappingValue(doc, "actions")
	if actionsNode == nil {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration, fmt.Sprintf("%s: missing required key \"actions\"", path), nil)
	}
	if err := rejectUnknownFields[ActionFile](path, doc); err != nil {
		return nil, err
	}

	file := &ActionFile{}
	for _, item := range actionsNode.Content {
		var cfg ActionConfig
		if err := item.Decode(&cfg); err != nil {
			return nil, parseErrorAt(path, err)
		}
		cfg.Line = item.Line
		cfg.Column = item.Column
		file.Actions = append(file.Actions, cfg)
	}

	if err := ValidateActionFile(file); err != nil {
		return nil, err
	}

	return file, nil
}

// ParseGroupFile loads and schema-validates one groups/*.yaml document.
func ParseGroupFile(path string) (*GroupFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.NewCoreError(coreerrors.KindFilesystem, fmt.Sprintf("read %s", path), err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, parseErrorAt(path, err)
	}
	if len(root.Content) == 0 {
		return &GroupFile{}, nil
	}

	doc := root.Content[0]
	groupsNode := mappingValue(doc, "groups")
	if groupsNode == nil {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration, fmt.Sprintf("%s: missing required key \"groups\"", path), nil)
	}
	if err := rejectUnknownFields[GroupFile](path, doc); err != nil {
		return nil, err
	}

	file := &GroupFile{}
	for _, item := range groupsNode.Content {
		var cfg GroupConfig
		if err := item.Decode(&cfg); err != nil {
			return nil, parseErrorAt(path, err)
		}
		cfg.Line = item.Line
		cfg.Column = item.Column
		file.Groups = append(file.Groups, cfg)
	}

	v := validatorInstance()
	for i, g := range file.Groups {
		if err := v.Struct(g); err != nil {
			return nil, convertValidationError(path, fmt.Sprintf("groups[%d]", i), g.Line, g.Column, err)
		}
	}

	return file, nil
}

// ParseWorkflowFile loads and schema-validates one workflows/*.yaml
// document.
func ParseWorkflowFile(path string) (*WorkflowFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.NewCoreError(coreerrors.KindFilesystem, fmt.Sprintf("read %s", path), err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, parseErrorAt(path, err)
	}
	if len(root.Content) == 0 {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration, fmt.Sprintf("%s: empty workflow document", path), nil)
	}

	doc := root.Content[0]
	stepsNode := mappingValue(doc, "steps")

	if err := rejectUnknownFields[WorkflowFile](path, doc); err != nil {
		return nil, err
	}

	var wf WorkflowFile
	if err := doc.Decode(&wf); err != nil {
		return nil, parseErrorAt(path, err)
	}

	if stepsNode != nil {
		for i, item := range stepsNode.Content {
			if i >= len(wf.Steps) {
				break
			}
			wf.Steps[i].Line = item.Line
			wf.Steps[i].Column = item.Column
		}
	}

	v := validatorInstance()
	if err := v.Struct(wf); err != nil {
		return nil, convertValidationError(path, "workflow", doc.Line, doc.Column, err)
	}

	return &wf, nil
}

// ParseProjectConfig loads and schema-validates the project's top-level
// document: name, global settings, and mode pattern sets.
func ParseProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coreerrors.NewCoreError(coreerrors.KindFilesystem, fmt.Sprintf("read %s", path), err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, parseErrorAt(path, err)
	}
	if len(root.Content) == 0 {
		return nil, coreerrors.NewCoreError(coreerrors.KindConfiguration, fmt.Sprintf("%s: empty project document", path), nil)
	}

	if err := rejectUnknownFields[ProjectConfig](path, root.Content[0]); err != nil {
		return nil, err
	}

	var cfg ProjectConfig
	if err := root.Content[0].Decode(&cfg); err != nil {
		return nil, parseErrorAt(path, err)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return nil, convertValidationError(path, "project", root.Content[0].Line, root.Content[0].Column, err)
	}

	return &cfg, nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func parseErrorAt(path string, err error) error {
	return coreerrors.NewCoreError(coreerrors.KindConfiguration, fmt.Sprintf("%s: invalid yaml", path), err).WithDetail("path", path)
}
