package config

import (
	"fmt"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// rejectUnknownFields walks node (expected to be a YAML mapping) against the
// yaml-tagged fields of T, recursing into nested struct and
// slice-of-struct fields, and fails on the first key T has no field for.
// Map-typed fields (variables, config, envVars, and similar free-form
// bundles) accept arbitrary keys and are never recursed into.
//
// yaml.Node's own Decode has no KnownFields equivalent, so this is the only
// way to catch a mistyped or stray key instead of silently dropping it.
func rejectUnknownFields[T any](path string, node *yaml.Node) error {
	var zero T
	return checkUnknownFields(path, node, reflect.TypeOf(zero))
}

func checkUnknownFields(path string, node *yaml.Node, t reflect.Type) error {
	if node == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || node.Kind != yaml.MappingNode {
		return nil
	}

	fields := yamlFields(t)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]

		field, ok := fields[key.Value]
		if !ok {
			return coreerrors.NewCoreError(coreerrors.KindValidation,
				fmt.Sprintf("%s: unknown key %q at line %d", path, key.Value, key.Line), nil).
				WithDetail("path", path)
		}

		fieldType := field.Type
		for fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}

		switch fieldType.Kind() {
		case reflect.Struct:
			if err := checkUnknownFields(path, value, fieldType); err != nil {
				return err
			}
		case reflect.Slice:
			elem := fieldType.Elem()
			for elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			if elem.Kind() != reflect.Struct || value.Kind != yaml.SequenceNode {
				continue
			}
			for _, item := range value.Content {
				if err := checkUnknownFields(path, item, elem); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// yamlFields maps a struct's yaml tag names to their reflect.StructField,
// ignoring tag options ("omitempty") and skipping "-" fields.
func yamlFields(t reflect.Type) map[string]reflect.StructField {
	out := make(map[string]reflect.StructField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.IndexByte(tag, ','); idx >= 0 {
			tag = tag[:idx]
		}
		if tag == "" || tag == "-" {
			continue
		}
		out[tag] = f
	}
	return out
}
