package dependency

import (
	"fmt"
	"reflect"
	"strings"
)

// Tag is the struct tag that declares a requirement on a dependency struct field.
const Tag = "dep"

// Need is one requirement declared by a dependency struct.
type Need struct {
	Requirement Requirement
	Field       string
	Optional    bool
}

// RequirementsOf lists the requirements declared by the dependency struct type T.
// Types that are not structs declare nothing.
func RequirementsOf[T any]() []Need {
	return needsOf(reflect.TypeFor[T]())
}

func needsOf(t reflect.Type) []Need {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var needs []Need
	for i := range t.NumField() {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup(Tag)
		if !ok {
			if f.Anonymous {
				needs = append(needs, needsOf(f.Type)...)
			}
			continue
		}
		if tag == "-" {
			continue
		}
		id, opts, _ := strings.Cut(tag, ",")
		needs = append(needs, Need{
			Requirement: Requirement(id),
			Field:       f.Name,
			Optional:    opts == "optional",
		})
	}

	return needs
}

// Check verifies that every non-optional need is bound in c.
// It is used at bootstrap to fail before any dispatch is accepted.
func Check(c Checker, needs []Need) error {
	var failures []error
	for _, n := range needs {
		if n.Optional || c.Has(n.Requirement) {
			continue
		}
		failures = append(failures, MissingError{Requirement: n.Requirement})
	}
	if len(failures) > 0 {
		return &ResolutionError{Failures: failures}
	}

	return nil
}

// Populate resolves every requirement declared on the struct target points to and assigns
// the results. Either every field is assigned or, on failure, the target is left untouched
// and a *ResolutionError lists all the requirements that could not be satisfied.
//
// Targets pointing to non-struct values (for example an operation without dependencies
// declared as `any` or struct{}) are left as they are.
func Populate(r Resolver, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidTarget
	}
	ev := rv.Elem()
	if ev.Kind() != reflect.Struct {
		return nil
	}

	tmp := reflect.New(ev.Type()).Elem()
	tmp.Set(ev)

	var failures []error
	populateStruct(r, tmp, &failures)
	if len(failures) > 0 {
		return &ResolutionError{Failures: failures}
	}
	ev.Set(tmp)

	return nil
}

func populateStruct(r Resolver, sv reflect.Value, failures *[]error) {
	st := sv.Type()
	for i := range st.NumField() {
		f := st.Field(i)
		tag, ok := f.Tag.Lookup(Tag)
		if !ok {
			if f.Anonymous {
				populateEmbedded(r, sv, i, failures)
			}
			continue
		}
		if tag == "-" {
			continue
		}
		id, opts, _ := strings.Cut(tag, ",")
		req := Requirement(id)
		if !f.IsExported() {
			*failures = append(*failures, fmt.Errorf("dependency: field %s.%s for %q is unexported", st.Name(), f.Name, req))
			continue
		}

		val, err := r.Resolve(req)
		if err != nil {
			if opts == "optional" && isMissing(err, req) {
				continue
			}
			*failures = append(*failures, err)
			continue
		}

		fv := sv.Field(i)
		if val == nil {
			*failures = append(*failures, WrongTypeError{Requirement: req, Want: f.Type.String(), Got: "nil"})
			continue
		}
		vv := reflect.ValueOf(val)
		if !vv.Type().AssignableTo(f.Type) {
			*failures = append(*failures, WrongTypeError{Requirement: req, Want: f.Type.String(), Got: vv.Type().String()})
			continue
		}
		fv.Set(vv)
	}
}

// populateEmbedded descends into an embedded struct. An embedded pointer is replaced by a
// populated copy, so a failed Populate never writes through a pointer the caller shares.
func populateEmbedded(r Resolver, sv reflect.Value, i int, failures *[]error) {
	f := sv.Type().Field(i)
	switch {
	case f.Type.Kind() == reflect.Struct:
		populateStruct(r, sv.Field(i), failures)
	case f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct:
		if len(needsOf(f.Type)) == 0 {
			return
		}
		fv := sv.Field(i)
		if !fv.CanSet() {
			*failures = append(*failures, fmt.Errorf("dependency: embedded field %s.%s is unexported", sv.Type().Name(), f.Name))
			return
		}
		nv := reflect.New(f.Type.Elem())
		if !fv.IsNil() {
			nv.Elem().Set(fv.Elem())
		}
		populateStruct(r, nv.Elem(), failures)
		fv.Set(nv)
	}
}

func isMissing(err error, req Requirement) bool {
	m, ok := err.(MissingError)
	return ok && m.Requirement == req
}
