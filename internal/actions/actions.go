// Package actions holds the server-side mutation entry points. Every action
// takes the submitted field bag, validates it, talks to the managed backend
// and returns a result with an explicit ok discriminant — actions never
// panic and never leak raw backend errors to the caller.
package actions

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/muni-incidencias/backend/internal/auth"
	"github.com/muni-incidencias/backend/internal/backend"
	"github.com/muni-incidencias/backend/internal/views"
)

// SessionAPI is the slice of the auth client the sign-in/out actions use.
type SessionAPI interface {
	SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

type Service struct {
	Store      backend.Store
	Auth       auth.Admin
	Sessions   SessionAPI
	Views      views.Invalidator
	Reconciler *Reconciler
	Logger     zerolog.Logger

	validate *validator.Validate
}

func New(store backend.Store, authAdmin auth.Admin, sessions SessionAPI, v views.Invalidator, rec *Reconciler, logger zerolog.Logger) *Service {
	validate := validator.New()
	// Report violations under the submitted form field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Service{
		Store:      store,
		Auth:       authAdmin,
		Sessions:   sessions,
		Views:      v,
		Reconciler: rec,
		Logger:     logger,
		validate:   validate,
	}
}

func (s *Service) invalidate(names ...string) {
	if s.Views != nil {
		s.Views.Invalidate(names...)
	}
}

// fieldErrors folds validator violations into a field-keyed message map.
func fieldErrors(err error) map[string][]string {
	issues := map[string][]string{}
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		issues["_"] = []string{"Datos invalidos."}
		return issues
	}
	for _, fe := range verrs {
		issues[fe.Field()] = append(issues[fe.Field()], messageFor(fe))
	}
	return issues
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Campo obligatorio."
	case "min":
		return fmt.Sprintf("Debe tener al menos %s caracteres.", fe.Param())
	case "max":
		return fmt.Sprintf("Debe tener como maximo %s caracteres.", fe.Param())
	case "email":
		return "Correo invalido."
	case "uuid":
		return "Identificador invalido."
	case "oneof":
		return "Valor no permitido."
	default:
		return "Valor invalido."
	}
}

// trimOrNil applies the optional-text rule shared by the confirmation
// fields: trim, and an empty result becomes null.
func trimOrNil(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
