package middleware

import (
	"strconv"

	"github.com/Kyz7/kolegium/internal/database"
	"github.com/Kyz7/kolegium/internal/models"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const subjectKey = "subject"

// PolicyRole converts a stored role into its policy form.
func PolicyRole(r models.Role) permission.Role {
	return permission.NewRole(r.Name, r.IsActive, permission.Capabilities{
		AllAccess:       r.AllAccess,
		ViewAllSections: r.ViewAllSections,
	}, r.PermissionNames())
}

// SubjectFromUser builds the policy subject for a user loaded with
// Roles.Permissions and Affiliations.
func SubjectFromUser(u *models.User) *permission.Subject {
	roles := make([]permission.Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, PolicyRole(r))
	}
	return &permission.Subject{
		UserID:       u.ID,
		Email:        u.Email,
		Roles:        roles,
		Affiliations: u.AffiliationIDs(),
	}
}

// LoadUser fetches a user with everything the policy needs.
func LoadUser(userID uint) (*models.User, error) {
	var user models.User
	err := database.DB.
		Preload("PrimaryRole").
		Preload("Roles.Permissions").
		Preload("Affiliations").
		First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LoadSubject resolves the JWT user into a policy subject. It must run
// after auth.JWTProtected.
func LoadSubject() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(uint)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		user, err := LoadUser(userID)
		if err != nil {
			return response.Unauthorized(c, "User not found")
		}
		if user.Status != "active" {
			return response.Unauthorized(c, "User is not active")
		}

		c.Locals(subjectKey, SubjectFromUser(user))
		return c.Next()
	}
}

// Subject returns the caller loaded by LoadSubject, or nil.
func Subject(c *fiber.Ctx) *permission.Subject {
	s, _ := c.Locals(subjectKey).(*permission.Subject)
	return s
}

// Authorize evaluates req for the current caller, recording the outcome.
func Authorize(c *fiber.Ctx, req permission.Request) permission.Decision {
	d := permission.Authorize(Subject(c), req)
	record(c, req.Target, d)
	return d
}

// Peek evaluates req without recording it. Handlers probing many targets
// at once (search) use it so misses are not logged as denials.
func Peek(c *fiber.Ctx, req permission.Request) permission.Decision {
	return permission.Authorize(Subject(c), req)
}

// Check evaluates only the permission part of the policy, without
// affiliation scoping.
func Check(c *fiber.Ctx, t permission.Target) permission.Decision {
	d := permission.Check(Subject(c), t)
	record(c, t, d)
	return d
}

func record(c *fiber.Ctx, t permission.Target, d permission.Decision) {
	outcome := "allow"
	if !d.Allowed {
		outcome = string(d.Reason)
	}
	obs.RecordDecision(string(t.Family), string(t.Action), outcome)

	if d.Allowed {
		return
	}
	fields := logrus.Fields{
		"family": t.Family,
		"action": t.Action,
		"reason": d.Reason,
		"path":   c.Path(),
	}
	if s := Subject(c); s != nil {
		fields["user_id"] = s.UserID
	}
	obs.Log.WithFields(fields).Info("authorization denied")
}

// Deny writes the error envelope for a denied decision.
func Deny(c *fiber.Ctx, d permission.Decision) error {
	return response.FromError(c, d.Err())
}

// RequirePermission guards a route on a flat family permission. Record
// level affiliation checks stay with the handler.
func RequirePermission(family permission.Family, action permission.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d := Check(c, permission.FlatTarget(family, action))
		if !d.Allowed {
			return Deny(c, d)
		}
		return c.Next()
	}
}

// AffiliationParam reads an optional affiliation id from the query string.
// A malformed value yields a validation error.
func AffiliationParam(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, permission.Errorf(permission.KindValidation, "invalid %s", name)
	}
	v := uint(id)
	return &v, nil
}

// FilterAffiliations narrows a listing query to what an allowed collection
// decision covers: the requested affiliation, or the caller's bound set.
func FilterAffiliations(q *gorm.DB, req permission.Request, d permission.Decision) *gorm.DB {
	switch {
	case req.AffiliationID != nil:
		return q.Where("affiliation_id = ?", *req.AffiliationID)
	case d.Affiliations != nil:
		return q.Where("affiliation_id IN ?", d.Affiliations)
	}
	return q
}

// CheckAffiliation validates an affiliation id taken from a request body
// before it reaches the policy. Nil is left for the policy to judge; zero
// and ids with no live affiliation are validation errors.
func CheckAffiliation(id *uint) error {
	if id == nil {
		return nil
	}
	if *id == 0 {
		return permission.Errorf(permission.KindValidation, "affiliation_id must be a positive integer")
	}

	var n int64
	if err := database.DB.Model(&models.Affiliation{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return permission.Errorf(permission.KindValidation, "affiliation %d does not exist", *id)
	}
	return nil
}
