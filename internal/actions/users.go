package actions

import (
	"context"
	"net/url"
	"strings"

	"github.com/muni-incidencias/backend/internal/models"
	"github.com/muni-incidencias/backend/internal/views"
)

// UserResult is the outcome of every account-management action.
type UserResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type createUserInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8"`
	Role     string `form:"role" validate:"required,oneof='Administrador' 'Operador'"`
	Status   string `form:"status" validate:"required,oneof='Activo' 'Inactivo'"`
}

// CreateUser provisions the auth identity first, then mirrors it into the
// system_users profile. A profile failure after the identity succeeded is
// reported distinctly and handed to the reconciler, which retries the
// profile write and rolls the identity back if retries run out.
func (s *Service) CreateUser(ctx context.Context, form url.Values) UserResult {
	in := createUserInput{
		Email:    strings.ToLower(strings.TrimSpace(form.Get("email"))),
		Password: form.Get("password"),
		Role:     form.Get("role"),
		Status:   form.Get("status"),
	}
	if err := s.validate.Struct(in); err != nil {
		return UserResult{OK: false, Message: firstIssue(fieldErrors(err))}
	}

	id, err := s.Auth.CreateUser(ctx, in.Email, in.Password, map[string]string{
		"role":   in.Role,
		"status": in.Status,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("email", in.Email).Msg("auth identity creation failed")
		return UserResult{OK: false, Message: "No se pudo crear el usuario."}
	}

	profile := models.SystemUser{ID: id, Username: in.Email, Role: in.Role, Status: in.Status}
	if err := s.Store.UpsertSystemUser(ctx, profile); err != nil {
		s.Logger.Error().Err(err).Str("user_id", id).Msg("profile write failed after identity creation")
		s.enqueue(Job{
			Name: "create-user-profile:" + id,
			Run: func(ctx context.Context) error {
				return s.Store.UpsertSystemUser(ctx, profile)
			},
			Compensate: func(ctx context.Context) error {
				return s.Auth.DeleteUser(ctx, id)
			},
		})
		return UserResult{OK: false, Message: "La cuenta se creo pero no se pudo registrar el perfil interno; se reintentara en segundo plano."}
	}

	s.invalidate(views.Settings)
	return UserResult{OK: true, Message: "Usuario creado correctamente."}
}

type updateUserInput struct {
	UserID string `form:"user_id" validate:"required,uuid"`
	Role   string `form:"role" validate:"required,oneof='Administrador' 'Operador'"`
	Status string `form:"status" validate:"required,oneof='Activo' 'Inactivo'"`
}

// UpdateUser applies role/status to the auth identity's metadata, then to
// the profile row, with the same partial-failure policy as CreateUser.
func (s *Service) UpdateUser(ctx context.Context, form url.Values) UserResult {
	in := updateUserInput{
		UserID: form.Get("user_id"),
		Role:   form.Get("role"),
		Status: form.Get("status"),
	}
	if err := s.validate.Struct(in); err != nil {
		return UserResult{OK: false, Message: "Datos invalidos para actualizar el usuario."}
	}

	err := s.Auth.UpdateUserMetadata(ctx, in.UserID, map[string]string{
		"role":   in.Role,
		"status": in.Status,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("user_id", in.UserID).Msg("auth metadata update failed")
		return UserResult{OK: false, Message: "No se pudo actualizar los datos del usuario."}
	}

	if err := s.Store.UpdateSystemUser(ctx, in.UserID, in.Role, in.Status); err != nil {
		s.Logger.Error().Err(err).Str("user_id", in.UserID).Msg("profile update failed after metadata update")
		s.enqueue(Job{
			Name: "update-user-profile:" + in.UserID,
			Run: func(ctx context.Context) error {
				return s.Store.UpdateSystemUser(ctx, in.UserID, in.Role, in.Status)
			},
		})
		return UserResult{OK: false, Message: "Los datos de acceso se actualizaron pero el perfil interno no; se reintentara en segundo plano."}
	}

	s.invalidate(views.Settings)
	return UserResult{OK: true, Message: "Usuario actualizado correctamente."}
}

type deleteUserInput struct {
	UserID string `form:"user_id" validate:"required,uuid"`
}

// DeleteUser removes the auth identity then the profile row. actorID is the
// signed-in caller; deleting one's own account is refused outright.
func (s *Service) DeleteUser(ctx context.Context, actorID string, form url.Values) UserResult {
	in := deleteUserInput{UserID: form.Get("user_id")}
	if err := s.validate.Struct(in); err != nil {
		return UserResult{OK: false, Message: "Solicitud de eliminacion invalida."}
	}

	if in.UserID == actorID {
		return UserResult{OK: false, Message: "No puedes eliminar tu propia cuenta."}
	}

	if err := s.Auth.DeleteUser(ctx, in.UserID); err != nil {
		s.Logger.Error().Err(err).Str("user_id", in.UserID).Msg("auth identity deletion failed")
		return UserResult{OK: false, Message: "No se pudo eliminar al usuario."}
	}

	if err := s.Store.DeleteSystemUser(ctx, in.UserID); err != nil {
		s.Logger.Error().Err(err).Str("user_id", in.UserID).Msg("profile deletion failed after identity deletion")
		s.enqueue(Job{
			Name: "delete-user-profile:" + in.UserID,
			Run: func(ctx context.Context) error {
				return s.Store.DeleteSystemUser(ctx, in.UserID)
			},
		})
		return UserResult{OK: false, Message: "La cuenta se elimino pero el perfil interno no; se reintentara en segundo plano."}
	}

	s.invalidate(views.Settings)
	return UserResult{OK: true, Message: "Usuario eliminado correctamente."}
}

func (s *Service) enqueue(job Job) {
	if s.Reconciler == nil {
		return
	}
	if !s.Reconciler.Enqueue(job) {
		s.Logger.Error().Str("job", job.Name).Msg("reconciler queue full, job dropped")
	}
}

func firstIssue(issues map[string][]string) string {
	for _, field := range []string{"email", "password", "role", "status", "_"} {
		if msgs, ok := issues[field]; ok && len(msgs) > 0 {
			return msgs[0]
		}
	}
	return "Datos invalidos."
}
