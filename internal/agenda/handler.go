package agenda

import (
	"errors"
	"time"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func target(scope, section string, action permission.Action) permission.Target {
	return permission.ScopedTarget(permission.FamilyAgenda, permission.Scope(scope), permission.Section(section), action)
}

func writeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrAgendaNotFound) {
		return response.NotFound(c, "Agenda")
	}
	return response.FromError(c, err)
}

func userID(c *fiber.Ctx) uint {
	id, _ := c.Locals("user_id").(uint)
	return id
}

// loadAuthorized fetches :id and checks action against the stored scope,
// section and affiliation. A nil agenda means the response was written.
func loadAuthorized(c *fiber.Ctx, action permission.Action) (*models.Agenda, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, response.BadRequest(c, "Invalid agenda ID", nil)
	}

	a, err := Get(database.DB, uint(id))
	if err != nil {
		return nil, writeError(c, err)
	}

	d := middleware.Authorize(c, permission.Request{
		Target:        target(a.Scope, a.Section, action),
		AffiliationID: a.AffiliationID,
	})
	if !d.Allowed {
		return nil, middleware.Deny(c, d)
	}
	return a, nil
}

func ListAgendaHandler(c *fiber.Ctx) error {
	affiliationID, err := middleware.AffiliationParam(c, "affiliation_id")
	if err != nil {
		return response.FromError(c, err)
	}

	req := permission.Request{
		Target:        target(c.Query("scope"), c.Query("section"), permission.ActionView),
		AffiliationID: affiliationID,
		Collection:    true,
	}
	d := middleware.Authorize(c, req)
	if !d.Allowed {
		return middleware.Deny(c, d)
	}

	page, limit, offset := response.PageParams(c)
	filter := ListFilter{
		Scope:   c.Query("scope"),
		Section: c.Query("section"),
		Search:  c.Query("search"),
		Offset:  offset,
		Limit:   limit,
	}
	if v := c.Query("published"); v != "" {
		published := v == "true"
		filter.Published = &published
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return response.ValidationError(c, map[string]string{"from": "must be an RFC3339 timestamp"})
		}
		filter.From = &from
	}

	items, total, err := List(database.DB, filter, func(q *gorm.DB) *gorm.DB {
		return middleware.FilterAffiliations(q, req, d)
	})
	if err != nil {
		return response.InternalError(c, "Failed to fetch agendas")
	}

	return response.SuccessWithMeta(c, items, response.CalculateMeta(page, limit, total), "Agendas retrieved successfully")
}

func GetAgendaHandler(c *fiber.Ctx) error {
	a, err := loadAuthorized(c, permission.ActionView)
	if a == nil {
		return err
	}
	return response.Success(c, a, "Agenda retrieved successfully")
}

func CreateAgendaHandler(c *fiber.Ctx) error {
	var body Input
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if err := middleware.CheckAffiliation(body.AffiliationID); err != nil {
		return writeError(c, err)
	}

	d := middleware.Authorize(c, permission.Request{
		Target:        target(body.Scope, body.Section, permission.ActionCreate),
		AffiliationID: body.AffiliationID,
	})
	if !d.Allowed {
		return middleware.Deny(c, d)
	}

	a, err := Create(database.DB, body, userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, a, "Agenda created successfully")
}

// UpdateAgendaHandler requires edit on the stored record and, when the
// record moves, edit on its destination too.
func UpdateAgendaHandler(c *fiber.Ctx) error {
	a, err := loadAuthorized(c, permission.ActionEdit)
	if a == nil {
		return err
	}

	var body Input
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if err := middleware.CheckAffiliation(body.AffiliationID); err != nil {
		return writeError(c, err)
	}

	if body.Scope != a.Scope || body.Section != a.Section || !sameAffiliation(body.AffiliationID, a.AffiliationID) {
		d := middleware.Authorize(c, permission.Request{
			Target:        target(body.Scope, body.Section, permission.ActionEdit),
			AffiliationID: body.AffiliationID,
		})
		if !d.Allowed {
			return middleware.Deny(c, d)
		}
	}

	updated, err := Update(database.DB, a, body, userID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, updated, "Agenda updated successfully")
}

func DeleteAgendaHandler(c *fiber.Ctx) error {
	a, err := loadAuthorized(c, permission.ActionDelete)
	if a == nil {
		return err
	}

	if err := Delete(database.DB, a); err != nil {
		return response.InternalError(c, "Failed to delete agenda")
	}
	return response.NoContent(c)
}

func PublishAgendaHandler(c *fiber.Ctx) error {
	return setPublished(c, true)
}

func UnpublishAgendaHandler(c *fiber.Ctx) error {
	return setPublished(c, false)
}

func setPublished(c *fiber.Ctx, published bool) error {
	a, err := loadAuthorized(c, permission.ActionPublish)
	if a == nil {
		return err
	}

	updated, err := SetPublished(database.DB, a, published, userID(c))
	if err != nil {
		return response.InternalError(c, "Failed to update agenda")
	}

	msg := "Agenda unpublished successfully"
	if published {
		msg = "Agenda published successfully"
	}
	return response.Success(c, updated, msg)
}

func sameAffiliation(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
