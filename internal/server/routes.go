package server

import (
	"time"

	"github.com/Kyz7/kolegium/internal/affiliation"
	"github.com/Kyz7/kolegium/internal/agenda"
	"github.com/Kyz7/kolegium/internal/auth"
	"github.com/Kyz7/kolegium/internal/gallery"
	"github.com/Kyz7/kolegium/internal/member"
	"github.com/Kyz7/kolegium/internal/middleware"
	"github.com/Kyz7/kolegium/internal/obs"
	"github.com/Kyz7/kolegium/internal/orgstructure"
	"github.com/Kyz7/kolegium/internal/permission"
	"github.com/Kyz7/kolegium/internal/role"
	"github.com/Kyz7/kolegium/internal/search"
	"github.com/Kyz7/kolegium/internal/storage"
	"github.com/Kyz7/kolegium/internal/user"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func SetupRoutes(app *fiber.App, opts Options) {
	// Middleware
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(obs.Instrument())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS, PATCH",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"message": "Kolegium API is running",
			"storage": storage.Mode(),
		})
	})
	app.Get("/metrics", obs.Handler())

	// ==========================================
	// AUTH
	// ==========================================
	authGroup := app.Group("/auth")
	if opts.RateLimit {
		authGroup.Use(limiter.New(limiter.Config{
			Max:        20,
			Expiration: 1 * time.Minute,
		}))
		authGroup.Post("/login", limiter.New(limiter.Config{
			Max:        5,
			Expiration: 15 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
		}), auth.LoginHandler)
		authGroup.Post("/refresh", limiter.New(limiter.Config{
			Max:        3,
			Expiration: 5 * time.Minute,
		}), auth.RefreshHandler)
	} else {
		authGroup.Post("/login", auth.LoginHandler)
		authGroup.Post("/refresh", auth.RefreshHandler)
	}
	authGroup.Get("/google/login", auth.GoogleLogin)
	authGroup.Get("/google/callback", auth.GoogleCallback)
	authGroup.Post("/logout", auth.JWTProtected(), auth.LogoutHandler)
	authGroup.Get("/me", auth.JWTProtected(), auth.MeHandler)

	protected := []fiber.Handler{auth.JWTProtected(), middleware.LoadSubject()}
	can := middleware.RequirePermission

	// ==========================================
	// ROLES & PERMISSIONS
	// ==========================================
	roleGroup := app.Group("/roles", protected...)
	roleGroup.Get("/", can(permission.FamilyRole, permission.ActionView), role.ListRolesHandler)
	roleGroup.Post("/", can(permission.FamilyRole, permission.ActionCreate), role.CreateRoleHandler)
	roleGroup.Post("/assign", can(permission.FamilyRole, permission.ActionEdit), role.AssignRoleToUserHandler)
	roleGroup.Get("/:id", can(permission.FamilyRole, permission.ActionView), role.GetRoleHandler)
	roleGroup.Put("/:id", can(permission.FamilyRole, permission.ActionEdit), role.UpdateRoleHandler)
	roleGroup.Put("/:id/permissions", can(permission.FamilyRole, permission.ActionEdit), role.SyncPermissionsHandler)
	roleGroup.Patch("/:id/toggle", can(permission.FamilyRole, permission.ActionEdit), role.ToggleRoleHandler)
	roleGroup.Post("/:id/duplicate", can(permission.FamilyRole, permission.ActionCreate), role.DuplicateRoleHandler)
	roleGroup.Delete("/:id", can(permission.FamilyRole, permission.ActionDelete), role.DeleteRoleHandler)

	permGroup := app.Group("/permissions", protected...)
	permGroup.Get("/", can(permission.FamilyPermission, permission.ActionView), role.ListPermissionsHandler)
	permGroup.Get("/available", can(permission.FamilyPermission, permission.ActionView), role.AvailablePermissionsHandler)
	permGroup.Post("/", can(permission.FamilyPermission, permission.ActionCreate), role.CreatePermissionHandler)
	permGroup.Delete("/:id", can(permission.FamilyPermission, permission.ActionDelete), role.DeletePermissionHandler)

	// ==========================================
	// USERS
	// ==========================================
	userGroup := app.Group("/users", protected...)
	userGroup.Get("/", can(permission.FamilyUser, permission.ActionView), user.ListUsersHandler)
	userGroup.Post("/", can(permission.FamilyUser, permission.ActionCreate), user.CreateUserHandler)
	userGroup.Get("/:id", can(permission.FamilyUser, permission.ActionView), user.GetUserHandler)
	userGroup.Put("/:id", can(permission.FamilyUser, permission.ActionEdit), user.UpdateUserHandler)
	userGroup.Put("/:id/roles", can(permission.FamilyUser, permission.ActionEdit), user.SetUserRolesHandler)
	userGroup.Put("/:id/affiliations", can(permission.FamilyUser, permission.ActionEdit), user.SetUserAffiliationsHandler)
	userGroup.Delete("/:id", can(permission.FamilyUser, permission.ActionDelete), user.DeleteUserHandler)

	// ==========================================
	// AFFILIATIONS
	// ==========================================
	affGroup := app.Group("/affiliations", protected...)
	affGroup.Get("/", affiliation.ListAffiliationsHandler)
	affGroup.Post("/", can(permission.FamilyAffiliation, permission.ActionCreate), affiliation.CreateAffiliationHandler)
	affGroup.Get("/:id", affiliation.GetAffiliationHandler)
	affGroup.Put("/:id", affiliation.UpdateAffiliationHandler)
	affGroup.Delete("/:id", affiliation.DeleteAffiliationHandler)
	affGroup.Get("/:id/profile", affiliation.GetProfileHandler)
	affGroup.Put("/:id/profile", affiliation.UpsertProfileHandler)
	affGroup.Delete("/:id/profile", affiliation.DeleteProfileHandler)
	affGroup.Post("/:id/profile/logo", affiliation.UploadLogoHandler)

	// ==========================================
	// SCOPED CONTENT
	// Authorization depends on the record, so handlers call the policy.
	// ==========================================
	agendaGroup := app.Group("/agenda", protected...)
	agendaGroup.Get("/", agenda.ListAgendaHandler)
	agendaGroup.Post("/", agenda.CreateAgendaHandler)
	agendaGroup.Get("/:id", agenda.GetAgendaHandler)
	agendaGroup.Put("/:id", agenda.UpdateAgendaHandler)
	agendaGroup.Delete("/:id", agenda.DeleteAgendaHandler)
	agendaGroup.Post("/:id/publish", agenda.PublishAgendaHandler)
	agendaGroup.Post("/:id/unpublish", agenda.UnpublishAgendaHandler)

	galleryGroup := app.Group("/galleries", protected...)
	galleryGroup.Get("/", gallery.ListGalleriesHandler)
	galleryGroup.Post("/", gallery.CreateGalleryHandler)
	galleryGroup.Get("/:id", gallery.GetGalleryHandler)
	galleryGroup.Put("/:id", gallery.UpdateGalleryHandler)
	galleryGroup.Delete("/:id", gallery.DeleteGalleryHandler)

	memberGroup := app.Group("/database/:org_type", protected...)
	memberGroup.Get("/", member.ListMembersHandler)
	memberGroup.Post("/", member.CreateMemberHandler)
	memberGroup.Post("/import", member.ImportMembersHandler)
	memberGroup.Get("/:id", member.GetMemberHandler)
	memberGroup.Put("/:id", member.UpdateMemberHandler)
	memberGroup.Delete("/:id", member.DeleteMemberHandler)

	app.Get("/search", append(protected, search.SearchHandler)...)

	orgGroup := app.Group("/org-structure/:org_type", protected...)
	orgGroup.Get("/", orgstructure.ListHandler)
	orgGroup.Post("/", orgstructure.CreateHandler)
	orgGroup.Get("/:id", orgstructure.GetHandler)
	orgGroup.Put("/:id", orgstructure.UpdateHandler)
	orgGroup.Delete("/:id", orgstructure.DeleteHandler)
}
