package role

import (
	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/gofiber/fiber/v2"
)

func ListPermissionsHandler(c *fiber.Ctx) error {
	perms, err := ListPermissions(database.DB, c.Query("module"))
	if err != nil {
		return response.InternalError(c, "Failed to fetch permissions")
	}

	return response.Success(c, perms, "Permissions retrieved successfully")
}

func CreatePermissionHandler(c *fiber.Ctx) error {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if body.Name == "" {
		return response.ValidationError(c, map[string]string{
			"name": "permission name is required",
		})
	}

	perm, err := EnsurePermission(database.DB, body.Name)
	if err != nil {
		return writeError(c, err)
	}

	if body.Description != "" && perm.Description != body.Description {
		perm.Description = body.Description
		if err := database.DB.Model(perm).Update("description", body.Description).Error; err != nil {
			return response.InternalError(c, "Failed to update permission")
		}
	}

	return response.Created(c, perm, "Permission ensured successfully")
}

func DeletePermissionHandler(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid permission ID", nil)
	}

	if err := DeletePermission(database.DB, uint(id)); err != nil {
		return writeError(c, err)
	}

	return response.NoContent(c)
}

// AvailablePermissionsHandler lists the concrete keys each family is checked
// against, for role editors building a permission set.
func AvailablePermissionsHandler(c *fiber.Ctx) error {
	catalogue := make(map[permission.Family][]string)
	for _, f := range permission.Families() {
		catalogue[f] = permission.KeysFor(f)
	}
	return response.Success(c, catalogue, "Available permissions retrieved successfully")
}
