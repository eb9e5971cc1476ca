package gallery

import (
	"errors"
	"strconv"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/Kyz7/kolegium/internal/storage"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func target(scope, section string, action permission.Action) permission.Target {
	return permission.ScopedTarget(permission.FamilyGallery, permission.Scope(scope), permission.Section(section), action)
}

func writeError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrGalleryNotFound) {
		return response.NotFound(c, "Gallery")
	}
	return response.FromError(c, err)
}

func loadAuthorized(c *fiber.Ctx, action permission.Action) (*models.Gallery, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, response.BadRequest(c, "Invalid gallery ID", nil)
	}

	g, err := Get(database.DB, uint(id))
	if err != nil {
		return nil, writeError(c, err)
	}

	d := middleware.Authorize(c, permission.Request{
		Target:        target(g.Scope, g.Section, action),
		AffiliationID: g.AffiliationID,
	})
	if !d.Allowed {
		return nil, middleware.Deny(c, d)
	}
	return g, nil
}

func ListGalleriesHandler(c *fiber.Ctx) error {
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
	items, total, err := List(database.DB, ListFilter{
		Scope:   c.Query("scope"),
		Section: c.Query("section"),
		Search:  c.Query("search"),
		Offset:  offset,
		Limit:   limit,
	}, func(q *gorm.DB) *gorm.DB {
		return middleware.FilterAffiliations(q, req, d)
	})
	if err != nil {
		return response.InternalError(c, "Failed to fetch galleries")
	}

	return response.SuccessWithMeta(c, items, response.CalculateMeta(page, limit, total), "Galleries retrieved successfully")
}

func GetGalleryHandler(c *fiber.Ctx) error {
	g, err := loadAuthorized(c, permission.ActionView)
	if g == nil {
		return err
	}
	return response.Success(c, g, "Gallery retrieved successfully")
}

// CreateGalleryHandler expects multipart form data with an "image" file.
func CreateGalleryHandler(c *fiber.Ctx) error {
	in := Input{
		Scope:   c.FormValue("scope"),
		Section: c.FormValue("section"),
		Title:   c.FormValue("title"),
		Caption: c.FormValue("caption"),
	}
	if raw := c.FormValue("affiliation_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return response.ValidationError(c, map[string]string{"affiliation_id": "must be a positive integer"})
		}
		v := uint(id)
		in.AffiliationID = &v
	}
	if err := middleware.CheckAffiliation(in.AffiliationID); err != nil {
		return writeError(c, err)
	}

	d := middleware.Authorize(c, permission.Request{
		Target:        target(in.Scope, in.Section, permission.ActionCreate),
		AffiliationID: in.AffiliationID,
	})
	if !d.Allowed {
		return middleware.Deny(c, d)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return response.ValidationError(c, map[string]string{"image": "image file is required"})
	}
	if err := storage.ValidateImage(file); err != nil {
		return response.ValidationError(c, map[string]string{"image": err.Error()})
	}
	if err := in.normalize(); err != nil {
		return response.FromError(c, err)
	}

	url, err := storage.Upload(file, storage.GalleryPath)
	if err != nil {
		obs.Log.WithError(err).Error("gallery upload failed")
		return response.InternalError(c, "Failed to upload image")
	}

	userID, _ := c.Locals("user_id").(uint)
	g, err := Create(database.DB, in, url, userID)
	if err != nil {
		_ = storage.Delete(url)
		return writeError(c, err)
	}
	return response.Created(c, g, "Gallery created successfully")
}

func UpdateGalleryHandler(c *fiber.Ctx) error {
	g, err := loadAuthorized(c, permission.ActionEdit)
	if g == nil {
		return err
	}

	var body Input
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	if err := middleware.CheckAffiliation(body.AffiliationID); err != nil {
		return writeError(c, err)
	}

	if body.Scope != g.Scope || body.Section != g.Section || !sameAffiliation(body.AffiliationID, g.AffiliationID) {
		d := middleware.Authorize(c, permission.Request{
			Target:        target(body.Scope, body.Section, permission.ActionEdit),
			AffiliationID: body.AffiliationID,
		})
		if !d.Allowed {
			return middleware.Deny(c, d)
		}
	}

	updated, err := Update(database.DB, g, body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, updated, "Gallery updated successfully")
}

func DeleteGalleryHandler(c *fiber.Ctx) error {
	g, err := loadAuthorized(c, permission.ActionDelete)
	if g == nil {
		return err
	}

	if err := Delete(database.DB, g); err != nil {
		return response.InternalError(c, "Failed to delete gallery")
	}
	if err := storage.Delete(g.ImageURL); err != nil {
		obs.Log.WithError(err).WithField("url", g.ImageURL).Warn("failed to remove gallery image")
	}
	return response.NoContent(c)
}

func sameAffiliation(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
