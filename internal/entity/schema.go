package entity

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/istore/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// schemaReason is the stable reason of every metadata schema violation.
const schemaReason = "metadata does not conform to schema, please check dimensions, properties and/or relations"

// validator checks documents against the embedded CUE definitions.
// A cue.Context is not safe for concurrent use, hence the mutex.
type validator struct {
	mu       sync.Mutex
	ctx      *cue.Context
	entity   cue.Value
	instance cue.Value
}

var (
	defaultValidator     *validator
	defaultValidatorOnce sync.Once
)

// schemaValidator returns the process-wide validator, compiling the
// embedded schema on first use.
func schemaValidator() *validator {
	defaultValidatorOnce.Do(func() {
		ctx := cuecontext.New()
		root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := root.Err(); err != nil {
			panic(fmt.Sprintf("istore: embedded schema does not compile: %v", err))
		}
		defaultValidator = &validator{
			ctx:      ctx,
			entity:   root.LookupPath(cue.ParsePath("#Entity")),
			instance: root.LookupPath(cue.ParsePath("#Instance")),
		}
	})
	return defaultValidator
}

// validateEntity checks a metadata document.
func (v *validator) validateEntity(doc *ir.Object) error {
	return v.validate(v.entity, doc)
}

// validateInstance checks a data instance document.
func (v *validator) validateInstance(doc *ir.Object) error {
	return v.validate(v.instance, doc)
}

func (v *validator) validate(def cue.Value, doc *ir.Object) error {
	data, err := ir.Marshal(doc)
	if err != nil {
		return err
	}
	expr, err := cuejson.Extract("document", data)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.BuildExpr(expr)
	if err := val.Err(); err != nil {
		return formatCUEError(err)
	}
	return formatCUEError(def.Unify(val).Validate(cue.Concrete(true)))
}

// ValidationError is a single CUE validation failure with its position.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// formatCUEError reduces a CUE error list to its first entry.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	ve := &ValidationError{Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ve.Path = strings.Join(path, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}
