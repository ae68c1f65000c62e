package compiler

import (
	"fmt"

	"github.com/roach88/rindel/internal/ir"
	"github.com/roach88/rindel/internal/natives"
)

// Validation error codes (E100-E199)
const (
	// Program errors (E100-E109)
	ErrMainMissing       = "E100" // main definition not defined
	ErrDuplicateName     = "E101" // duplicate definition, application or port name
	ErrInvalidTempo      = "E102" // tempo is not step or event
	ErrReservedName      = "E103" // application named in, out or fn
	ErrUnknownNative     = "E104" // native not in the registry
	ErrInvalidNativeConf = "E105" // registry rejected the config

	// Connection errors (E110-E119)
	ErrInvalidReference    = "E110" // reference is not owner.name
	ErrUnresolvedSource    = "E111" // from does not resolve lexically
	ErrInvalidDestination  = "E112" // to does not resolve in the declaring definition
	ErrDuplicateConnection = "E113" // destination connected twice
)

// ValidationError represents a program validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled program before it is built.
// Returns all errors found (does not fail-fast).
//
// When reg is non-nil every application's native and config are checked
// against it as well. Port names and tempos of native signatures are only
// checked by Build.
func Validate(prog *ir.ProgramSpec, reg *natives.Registry) []ValidationError {
	var errs []ValidationError

	if _, ok := prog.Definition(prog.Main); !ok {
		errs = append(errs, ValidationError{
			Field:   "main",
			Message: fmt.Sprintf("main definition %q is not defined", prog.Main),
			Code:    ErrMainMissing,
		})
	}

	rootNames := make(map[string]bool)
	for _, d := range prog.Definitions {
		if rootNames[d.Name] {
			errs = append(errs, ValidationError{
				Field:   "definitions." + d.Name,
				Message: fmt.Sprintf("duplicate definition name %q", d.Name),
				Code:    ErrDuplicateName,
			})
		}
		rootNames[d.Name] = true
	}

	for _, root := range newScopes(prog) {
		root.walk(func(s *scope) {
			errs = append(errs, validateScope(s, reg)...)
		})
	}
	return errs
}

func validateScope(s *scope, reg *natives.Registry) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   s.path + "." + field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	for _, group := range []struct {
		field string
		ports []ir.PortSpec
	}{{"inputs", s.def.Inputs}, {"outputs", s.def.Outputs}} {
		seen := make(map[string]bool)
		for i, p := range group.ports {
			field := fmt.Sprintf("%s[%d]", group.field, i)
			if seen[p.Name] {
				add(field, ErrDuplicateName, "duplicate port name %q", p.Name)
			}
			seen[p.Name] = true
			if !ir.ValidTempos[p.Tempo] {
				add(field, ErrInvalidTempo, "tempo %q must be step or event", p.Tempo)
			}
		}
	}

	apps := make(map[string]bool)
	for _, a := range s.def.Applications {
		field := "applications." + a.Name
		if apps[a.Name] {
			add(field, ErrDuplicateName, "duplicate application name %q", a.Name)
		}
		apps[a.Name] = true
		switch a.Name {
		case refHeadInput, refHeadOutput, refHeadFunction:
			add(field, ErrReservedName, "application name %q is reserved", a.Name)
		}
		if reg == nil {
			continue
		}
		if !reg.Has(a.Native) {
			add(field, ErrUnknownNative, "unknown native %q", a.Native)
			continue
		}
		if _, err := reg.Build(a.Native, configMap(a.Config)); err != nil {
			add(field, ErrInvalidNativeConf, "%v", err)
		}
	}

	nested := make(map[string]bool)
	for _, d := range s.def.Definitions {
		if nested[d.Name] {
			add("definitions."+d.Name, ErrDuplicateName, "duplicate definition name %q", d.Name)
		}
		nested[d.Name] = true
	}

	destinations := make(map[string]bool)
	for i, c := range s.def.Connections {
		field := fmt.Sprintf("connections[%d]", i)
		from, err := parseRef(c.From)
		if err != nil {
			add(field+".from", ErrInvalidReference, "%v", err)
		} else if _, err := s.resolveFrom(from); err != nil {
			add(field+".from", ErrUnresolvedSource, "%v", err)
		}

		to, err := parseRef(c.To)
		if err != nil {
			add(field+".to", ErrInvalidReference, "%v", err)
			continue
		}
		if err := s.resolveTo(to); err != nil {
			add(field+".to", ErrInvalidDestination, "%v", err)
			continue
		}
		if destinations[c.To] {
			add(field+".to", ErrDuplicateConnection, "%q is already connected", c.To)
		}
		destinations[c.To] = true
	}
	return errs
}

// configMap converts an application config into the plain Go values
// native factories expect.
func configMap(cfg ir.IRObject) map[string]any {
	if cfg == nil {
		return nil
	}
	return ir.ToGo(cfg).(map[string]any)
}
