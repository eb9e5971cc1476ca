package role

import (
	"errors"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/gofiber/fiber/v2"
)

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		return response.NotFound(c, "Role")
	case errors.Is(err, ErrPermissionNotFound):
		return response.NotFound(c, "Permission")
	case errors.Is(err, ErrUserNotFound):
		return response.NotFound(c, "User")
	}
	return response.FromError(c, err)
}

func callerHasAllAccess(c *fiber.Ctx) bool {
	s := middleware.Subject(c)
	return s != nil && s.HasAllAccess()
}

// guardEscalation stops callers without all access from granting all access
// or the global wildcard.
func guardEscalation(c *fiber.Ctx, in RoleInput) error {
	if !GrantsEscalate(in) || callerHasAllAccess(c) {
		return nil
	}
	return permission.Errorf(permission.KindForbidden, "Only all-access administrators may grant all access or the global wildcard")
}

// guardProtected stops callers without all access from changing the grants
// of system or all-access roles. Other details stay editable.
func guardProtected(c *fiber.Ctx, r *models.Role, in RoleInput) error {
	if !Protected(r) || !ChangesGrants(r, in) || callerHasAllAccess(c) {
		return nil
	}
	return permission.Errorf(permission.KindForbidden, "Only all-access administrators may change the grants of role %s", r.Name)
}

// loadForChange fetches :id and runs both guards for in. A nil role means
// the response was written.
func loadForChange(c *fiber.Ctx, in RoleInput) (*models.Role, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, response.BadRequest(c, "Invalid role ID", nil)
	}

	r, err := GetRole(database.DB, uint(id))
	if err != nil {
		return nil, writeError(c, err)
	}
	if err := guardEscalation(c, in); err != nil {
		return nil, writeError(c, err)
	}
	if err := guardProtected(c, r, in); err != nil {
		return nil, writeError(c, err)
	}
	return r, nil
}

func ListRolesHandler(c *fiber.Ctx) error {
	roles, err := ListRoles(database.DB)
	if err != nil {
		return response.InternalError(c, "Failed to fetch roles")
	}

	return response.Success(c, roles, "Roles retrieved successfully")
}

func GetRoleHandler(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid role ID", nil)
	}

	role, err := GetRole(database.DB, uint(id))
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, role, "Role retrieved successfully")
}

func CreateRoleHandler(c *fiber.Ctx) error {
	var body RoleInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if body.Name == "" {
		return response.ValidationError(c, map[string]string{
			"name": "role name is required",
		})
	}

	if err := guardEscalation(c, body); err != nil {
		return writeError(c, err)
	}

	role, err := CreateRole(database.DB, body)
	if err != nil {
		return writeError(c, err)
	}

	return response.Created(c, role, "Role created successfully")
}

// UpdateRoleHandler updates role details. When "permissions" is present the
// role's permission set is replaced with it.
func UpdateRoleHandler(c *fiber.Ctx) error {
	var body RoleInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	r, err := loadForChange(c, body)
	if r == nil {
		return err
	}

	role, err := UpdateRole(database.DB, r.ID, body)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, role, "Role updated successfully")
}

func SyncPermissionsHandler(c *fiber.Ctx) error {
	var body struct {
		Permissions []string `json:"permissions"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	r, err := loadForChange(c, RoleInput{Permissions: &body.Permissions})
	if r == nil {
		return err
	}

	role, err := SyncPermissions(database.DB, r.ID, body.Permissions)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, role, "Role permissions synced successfully")
}

// guardAllAccessRole stops callers without all access from toggling or
// deleting a role that carries AllAccess.
func guardAllAccessRole(c *fiber.Ctx, id uint) error {
	r, err := GetRole(database.DB, id)
	if err != nil {
		return err
	}
	if r.AllAccess && !callerHasAllAccess(c) {
		return permission.Errorf(permission.KindForbidden, "Only all-access administrators may change role %s", r.Name)
	}
	return nil
}

func DeleteRoleHandler(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid role ID", nil)
	}

	if err := guardAllAccessRole(c, uint(id)); err != nil {
		return writeError(c, err)
	}

	if err := DeleteRole(database.DB, uint(id)); err != nil {
		return writeError(c, err)
	}

	return response.NoContent(c)
}

func ToggleRoleHandler(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid role ID", nil)
	}

	if err := guardAllAccessRole(c, uint(id)); err != nil {
		return writeError(c, err)
	}

	role, err := ToggleActive(database.DB, uint(id))
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, role, "Role status updated successfully")
}

func DuplicateRoleHandler(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid role ID", nil)
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if body.Name == "" {
		return response.ValidationError(c, map[string]string{
			"name": "new role name is required",
		})
	}

	original, err := GetRole(database.DB, uint(id))
	if err != nil {
		return writeError(c, err)
	}
	names := original.PermissionNames()
	if err := guardEscalation(c, RoleInput{AllAccess: &original.AllAccess, Permissions: &names}); err != nil {
		return writeError(c, err)
	}

	role, err := DuplicateRole(database.DB, uint(id), body.Name)
	if err != nil {
		return writeError(c, err)
	}

	return response.Created(c, role, "Role duplicated successfully")
}

func AssignRoleToUserHandler(c *fiber.Ctx) error {
	var body struct {
		UserID uint `json:"user_id"`
		RoleID uint `json:"role_id"`
	}

	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if body.UserID == 0 || body.RoleID == 0 {
		return response.ValidationError(c, map[string]string{
			"user_id": "user_id is required",
			"role_id": "role_id is required",
		})
	}

	target, err := GetRole(database.DB, body.RoleID)
	if err != nil {
		return writeError(c, err)
	}
	if target.AllAccess && !callerHasAllAccess(c) {
		return response.Forbidden(c, "Only all-access administrators may assign this role")
	}

	user, err := AssignRole(database.DB, body.UserID, body.RoleID)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, user, "Role assigned successfully")
}
