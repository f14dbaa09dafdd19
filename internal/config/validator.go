package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	coreerrors "github.com/stackforge/actioncore/pkg/errors"
)

// ValidateActionFile performs schema and cross-field validation on a
// parsed action file: struct tags first, then the duplicate-name check
// that only makes sense once every entry has been decoded.
func ValidateActionFile(file *ActionFile) error {
	if file == nil {
		return coreerrors.NewCoreError(coreerrors.KindValidation, "action file is nil", nil)
	}

	v := validatorInstance()
	seen := make(map[string]int, len(file.Actions))

	for i, a := range file.Actions {
		if err := v.Struct(a); err != nil {
			return convertValidationError("", fieldForAction(i, ""), a.Line, a.Column, err)
		}

		key := a.Kind + "." + a.Name
		if prior, ok := seen[key]; ok {
			return coreerrors.NewCoreError(coreerrors.KindValidation,
				fmt.Sprintf("action %q declared twice (entries %d and %d)", key, prior, i), nil).
				WithDetail("path", fieldForAction(i, "name"))
		}
		seen[key] = i

		for j, dep := range a.DependsOn {
			if err := v.Struct(dep); err != nil {
				return convertValidationError("", fieldForAction(i, fmt.Sprintf("depends_on[%d]", j)), a.Line, a.Column, err)
			}
		}
	}

	return nil
}

func convertValidationError(source, path string, line, column int, err error) error {
	msg := err.Error()
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		fe := ves[0]
		msg = fmt.Sprintf("%s failed validation for tag %q", yamlishFieldName(fe), fe.Tag())
	}

	ce := coreerrors.NewCoreError(coreerrors.KindValidation, msg, err).WithDetail("path", path)
	if line > 0 {
		ce.WithDetail("line", line).WithDetail("column", column)
		if source != "" {
			ce.WithHint(Snippet(source, Position{Line: line, Column: column}))
		}
	}
	return ce
}

func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	lowered := make([]string, 0, len(parts))
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}

func fieldForAction(index int, field string) string {
	if field == "" {
		return fmt.Sprintf("actions[%d]", index)
	}
	return fmt.Sprintf("actions[%d].%s", index, field)
}
