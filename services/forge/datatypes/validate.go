// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxJobNameBytes caps a job's display name. Sanitized names feed
// repo, project, and DNS identifiers, all of which have provider
// length limits well below this.
const MaxJobNameBytes = 128

// batchValidate is the validator instance for batch datatypes.
// Initialized in init() with custom validators. It reads the same
// binding tags gin enforces at the HTTP edge, so non-HTTP callers
// (CLI, tests, embedding code) get identical validation.
var batchValidate *validator.Validate

func init() {
	batchValidate = validator.New()
	batchValidate.SetTagName("binding")
	_ = batchValidate.RegisterValidation("sanitizable", validateSanitizable)
}

// validateSanitizable reports whether a name survives sanitization:
// it must contain at least one letter or digit, or the sanitized form
// would be empty and unusable as a repo, project, or DNS label.
func validateSanitizable(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// Validate checks a batch request the same way the HTTP edge does,
// plus name rules that binding tags cannot express.
func (r BatchRequest) Validate() error {
	if err := batchValidate.Struct(r); err != nil {
		return err
	}
	for _, job := range r.Jobs {
		if len(job.Name) > MaxJobNameBytes {
			return fmt.Errorf("job %s: name exceeds %d bytes", job.ID, MaxJobNameBytes)
		}
		if err := batchValidate.Var(job.Name, "sanitizable"); err != nil {
			return fmt.Errorf("job %s: name %q has no usable characters", job.ID, job.Name)
		}
	}
	return nil
}
