package user

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
	if errors.Is(err, ErrUserNotFound) {
		return response.NotFound(c, "User")
	}
	return response.FromError(c, err)
}

// guardAllAccess stops callers without all access from handing out an
// all-access role.
func guardAllAccess(c *fiber.Ctx, in UserInput) error {
	var ids []uint
	if in.RoleIDs != nil {
		ids = append(ids, *in.RoleIDs...)
	}
	if in.PrimaryRoleID != nil {
		ids = append(ids, *in.PrimaryRoleID)
	}

	grants, err := GrantsAllAccess(database.DB, ids)
	if err != nil {
		return err
	}
	if !grants {
		return nil
	}
	if s := middleware.Subject(c); s != nil && s.HasAllAccess() {
		return nil
	}
	return permission.Errorf(permission.KindForbidden, "Only all-access administrators may assign this role")
}

// guardScope checks the caller may manage target (nil on create) and, when
// next is set, replace its affiliations with next.
func guardScope(c *fiber.Ctx, target *models.User, next *[]uint) error {
	var current []uint
	if target != nil {
		current = target.AffiliationIDs()
	}
	want := current
	if next != nil {
		want = *next
	}
	return permission.AssignAffiliations(middleware.Subject(c), current, want)
}

// loadManaged fetches :id and checks the caller may manage it.
func loadManaged(c *fiber.Ctx, next *[]uint) (*models.User, error) {
	id, ok := parseID(c)
	if !ok {
		return nil, response.BadRequest(c, "Invalid user ID", nil)
	}

	target, err := GetUser(database.DB, id)
	if err != nil {
		return nil, writeError(c, err)
	}
	if err := guardScope(c, target, next); err != nil {
		return nil, response.FromError(c, err)
	}
	return target, nil
}

func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

func CreateUserHandler(c *fiber.Ctx) error {
	var body UserInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if body.Email == "" || body.Password == "" || body.Name == "" {
		return response.ValidationError(c, map[string]string{
			"email":    "email is required",
			"password": "password is required",
			"name":     "name is required",
		})
	}

	if err := guardAllAccess(c, body); err != nil {
		return writeError(c, err)
	}
	if err := guardScope(c, nil, body.AffiliationIDs); err != nil {
		return writeError(c, err)
	}

	user, err := CreateUser(database.DB, body)
	if err != nil {
		return writeError(c, err)
	}

	return response.Created(c, user, "User created successfully")
}

func ListUsersHandler(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)

	users, total, err := ListUsers(database.DB, ListFilter{
		Search:        c.Query("search"),
		RoleID:        uint(c.QueryInt("role_id", 0)),
		AffiliationID: uint(c.QueryInt("affiliation_id", 0)),
		Offset:        offset,
		Limit:         limit,
	})
	if err != nil {
		return response.InternalError(c, "Failed to fetch users")
	}

	return response.SuccessWithMeta(c, users, response.CalculateMeta(page, limit, total), "Users retrieved successfully")
}

func GetUserHandler(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid user ID", nil)
	}

	user, err := GetUser(database.DB, id)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, user, "User retrieved successfully")
}

func UpdateUserHandler(c *fiber.Ctx) error {
	var body UserInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	target, err := loadManaged(c, body.AffiliationIDs)
	if target == nil {
		return err
	}
	if err := guardAllAccess(c, body); err != nil {
		return writeError(c, err)
	}

	user, err := UpdateUser(database.DB, target.ID, body)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, user, "User updated successfully")
}

func DeleteUserHandler(c *fiber.Ctx) error {
	id, ok := parseID(c)
	if !ok {
		return response.BadRequest(c, "Invalid user ID", nil)
	}

	if currentUserID, _ := c.Locals("user_id").(uint); id == currentUserID {
		return response.BadRequest(c, "Cannot delete your own account", nil)
	}

	target, err := loadManaged(c, nil)
	if target == nil {
		return err
	}

	if err := DeleteUser(database.DB, target.ID); err != nil {
		return writeError(c, err)
	}

	return response.NoContent(c)
}

func SetUserRolesHandler(c *fiber.Ctx) error {
	var body struct {
		RoleIDs []uint `json:"role_ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	target, err := loadManaged(c, nil)
	if target == nil {
		return err
	}
	if err := guardAllAccess(c, UserInput{RoleIDs: &body.RoleIDs}); err != nil {
		return writeError(c, err)
	}

	user, err := SetRoles(database.DB, target.ID, body.RoleIDs)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, user, "User roles updated successfully")
}

func SetUserAffiliationsHandler(c *fiber.Ctx) error {
	var body struct {
		AffiliationIDs []uint `json:"affiliation_ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	target, err := loadManaged(c, &body.AffiliationIDs)
	if target == nil {
		return err
	}

	user, err := SetAffiliations(database.DB, target.ID, body.AffiliationIDs)
	if err != nil {
		return writeError(c, err)
	}

	return response.Success(c, user, "User affiliations updated successfully")
}
