package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate = validator.New()

// MaxEdgeVertex bounds vertex counts accepted over the API.
const MaxEdgeVertex = 10_000_000

// ValidateDetectionRequest checks struct tags and the cross-field rules
// tags cannot express.
func ValidateDetectionRequest(req *DetectionRequest) error {
	if req == nil {
		return errors.New("detection request cannot be nil")
	}

	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if len(req.Edges) > 0 && req.NumVertices == 0 {
		return errors.New("NumVertices: field is required when edges are given")
	}
	if len(req.Edges) > 0 && len(req.Interactions) > 0 {
		return errors.New("Edges: provide either edges or interactions, not both")
	}
	if req.NumVertices > MaxEdgeVertex {
		return fmt.Errorf("NumVertices: maximum %d vertices allowed, got %d", MaxEdgeVertex, req.NumVertices)
	}
	for i, e := range req.Edges {
		if e.From >= req.NumVertices || e.To >= req.NumVertices {
			return fmt.Errorf("Edges: edge at index %d references a vertex outside [0, %d)", i, req.NumVertices)
		}
	}

	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		switch e.Tag() {
		case "required", "required_without":
			return fmt.Errorf("%s: field is required", e.Namespace())
		case "min":
			return fmt.Errorf("%s: must be at least %s (got %v)", e.Namespace(), e.Param(), e.Value())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s (got %v)", e.Namespace(), e.Param(), e.Value())
		case "max":
			return fmt.Errorf("%s: must be at most %s (got %v)", e.Namespace(), e.Param(), e.Value())
		case "nefield":
			return fmt.Errorf("%s: self-loops are not allowed", e.Namespace())
		default:
			return fmt.Errorf("%s: failed %s validation", e.Namespace(), e.Tag())
		}
	}
	return err
}
