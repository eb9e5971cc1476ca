package affiliation

import (
	"errors"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/Kyz7/kolegium/internal/storage"
	"github.com/gofiber/fiber/v2"
)

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrAffiliationNotFound):
		return response.NotFound(c, "Affiliation")
	case errors.Is(err, ErrProfileNotFound):
		return response.NotFound(c, "Affiliation profile")
	}
	return response.FromError(c, err)
}

// authorizeID checks action on the affiliation identified by :id and
// returns the id when allowed.
func authorizeID(c *fiber.Ctx, action permission.Action) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, response.BadRequest(c, "Invalid affiliation ID", nil)
	}
	aid := uint(id)

	d := middleware.Authorize(c, permission.Request{
		Target:        permission.FlatTarget(permission.FamilyAffiliation, action),
		AffiliationID: &aid,
	})
	if !d.Allowed {
		return 0, middleware.Deny(c, d)
	}
	return aid, nil
}

// ListAffiliationsHandler lists affiliations. Bound callers only see their
// own; unbound callers with affiliation.view see the whole catalogue.
func ListAffiliationsHandler(c *fiber.Ctx) error {
	d := middleware.Check(c, permission.FlatTarget(permission.FamilyAffiliation, permission.ActionView))
	if !d.Allowed {
		return middleware.Deny(c, d)
	}

	page, limit, offset := response.PageParams(c)
	filter := ListFilter{
		Type:   c.Query("type"),
		Search: c.Query("search"),
		Offset: offset,
		Limit:  limit,
	}
	if s := middleware.Subject(c); d.Reason != permission.ReasonAllAccess && len(s.Affiliations) > 0 {
		filter.IDs = s.Affiliations
	}

	affs, total, err := List(database.DB, filter)
	if err != nil {
		return response.InternalError(c, "Failed to fetch affiliations")
	}

	return response.SuccessWithMeta(c, affs, response.CalculateMeta(page, limit, total), "Affiliations retrieved successfully")
}

func GetAffiliationHandler(c *fiber.Ctx) error {
	id, err := authorizeID(c, permission.ActionView)
	if id == 0 {
		return err
	}

	a, err := Get(database.DB, id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, a, "Affiliation retrieved successfully")
}

func CreateAffiliationHandler(c *fiber.Ctx) error {
	var body Input
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	a, err := Create(database.DB, body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, a, "Affiliation created successfully")
}

func UpdateAffiliationHandler(c *fiber.Ctx) error {
	id, err := authorizeID(c, permission.ActionEdit)
	if id == 0 {
		return err
	}

	var body Input
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	a, err := Update(database.DB, id, body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, a, "Affiliation updated successfully")
}

func DeleteAffiliationHandler(c *fiber.Ctx) error {
	id, err := authorizeID(c, permission.ActionDelete)
	if id == 0 {
		return err
	}

	if err := Delete(database.DB, id); err != nil {
		return writeError(c, err)
	}
	return response.NoContent(c)
}

func GetProfileHandler(c *fiber.Ctx) error {
	id, err := authorizeID(c, permission.ActionView)
	if id == 0 {
		return err
	}

	p, err := GetProfile(database.DB, id)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, p, "Affiliation profile retrieved successfully")
}

func UpsertProfileHandler(c *fiber.Ctx) error {
	id, err := authorizeID(c, permission.ActionEdit)
	if id == 0 {
		return err
	}

	var body ProfileInput
	if err := c.BodyParser(&body); err != nil {
		return response.BadRequest(c, "Invalid request body", err.Error())
	}

	p, err := UpsertProfile(database.DB, id, body)
	if err != nil {
		return writeError(c, err)
	}
	return response.Success(c, p, "Affiliation profile saved successfully")
}

func DeleteProfileHandler(c *fiber.Ctx) error {
	id, err := authorizeID(c, permission.ActionEdit)
	if id == 0 {
		return err
	}

	if err := DeleteProfile(database.DB, id); err != nil {
		return writeError(c, err)
	}
	return response.NoContent(c)
}

// UploadLogoHandler stores the "logo" image and replaces the profile logo.
func UploadLogoHandler(c *fiber.Ctx) error {
	id, err := authorizeID(c, permission.ActionEdit)
	if id == 0 {
		return err
	}

	file, err := c.FormFile("logo")
	if err != nil {
		return response.ValidationError(c, map[string]string{"logo": "logo file is required"})
	}
	if err := storage.ValidateImage(file); err != nil {
		return response.ValidationError(c, map[string]string{"logo": err.Error()})
	}

	if _, err := GetProfile(database.DB, id); err != nil {
		return writeError(c, err)
	}

	url, err := storage.Upload(file, storage.LogoPath)
	if err != nil {
		obs.Log.WithError(err).Error("logo upload failed")
		return response.InternalError(c, "Failed to upload logo")
	}

	p, previous, err := SetLogo(database.DB, id, url)
	if err != nil {
		_ = storage.Delete(url)
		return writeError(c, err)
	}
	if previous != "" {
		if err := storage.Delete(previous); err != nil {
			obs.Log.WithError(err).WithField("url", previous).Warn("failed to remove old logo")
		}
	}

	return response.Success(c, p, "Logo uploaded successfully")
}
