// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

// Package validation provides struct validation using go-playground/validator v10
// through a thread-safe singleton instance. It is used in two places:
//
//   - internal/config validates the loaded configuration tree
//   - internal/sync validates incoming position records (the built-in
//     `latitude`/`longitude` tags cover the coordinate range rules)
//
// Example:
//
//	type PositionRecord struct {
//	    DeviceID  string  `validate:"required"`
//	    Latitude  float64 `validate:"latitude"`
//	    Longitude float64 `validate:"longitude"`
//	}
//
//	if err := validation.ValidateStruct(&rec); err != nil {
//	    // err.Error() joins per-field messages; err.Errors() has details
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes a single failed field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

// Error returns the human-readable message for this field.
func (e FieldError) Error() string {
	return e.Message
}

// StructError is a collection of field validation failures.
type StructError struct {
	fields []FieldError
}

// Errors returns the per-field failures.
func (se *StructError) Errors() []FieldError {
	return se.fields
}

// Error implements the error interface, joining all field messages.
func (se *StructError) Error() string {
	if len(se.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(se.fields))
	for i, fe := range se.fields {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// HasTag reports whether any field failed with the given validation tag.
func (se *StructError) HasTag(tag string) bool {
	for _, fe := range se.fields {
		if fe.Tag == tag {
			return true
		}
	}
	return false
}

// HasField reports whether the named struct field failed validation.
func (se *StructError) HasField(field string) bool {
	for _, fe := range se.fields {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// GetValidator returns the singleton validator instance. Thread-safe; the
// instance caches struct metadata so reuse matters for hot paths like the
// record validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates a struct with the singleton validator.
// Returns nil on success or a *StructError describing every failed field.
func ValidateStruct(s interface{}) *StructError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &StructError{fields: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translateError(fe),
		}
	}
	return &StructError{fields: fields}
}

// errorMessageTemplates maps validation tags to message templates.
var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"latitude":  "%s must be a valid latitude (-90 to 90)",
	"longitude": "%s must be a valid longitude (-180 to 180)",
	"url":       "%s must be a valid URL",
	"oneof":     "%s has an unsupported value",
}

// errorMessageWithParam maps validation tags to templates that include param.
var errorMessageWithParam = map[string]string{
	"gte": "%s must be greater than or equal to %s",
	"lte": "%s must be less than or equal to %s",
	"gt":  "%s must be greater than %s",
	"lt":  "%s must be less than %s",
	"min": "%s must be at least %s",
	"max": "%s must be at most %s",
}

// translateError converts a validator.FieldError to a human-readable message.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	tag := fe.Tag()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
