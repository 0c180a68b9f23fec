package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/dto"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
	"github.com/spec-kit/helpdesk-portal/internal/domain"
	"github.com/spec-kit/helpdesk-portal/internal/service"
	apperrors "github.com/spec-kit/helpdesk-portal/pkg/util/errorutil"
)

// CategoriesHandler manages the category catalog.
type CategoriesHandler struct {
	service *service.CategoryService
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(categoryService *service.CategoryService) *CategoriesHandler {
	return &CategoriesHandler{service: categoryService}
}

// ListCategories GET /categories.
func (h *CategoriesHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.service.List(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for _, category := range categories {
		items = append(items, categoryResponse(category))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateCategory POST /categories.
func (h *CategoriesHandler) CreateCategory(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, err := h.service.Create(c.Context(), actor, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": categoryResponse(*category)})
}

// DeleteCategory DELETE /categories/:id. Tickets referencing the category
// keep their stored id and render the fallback label from then on.
func (h *CategoriesHandler) DeleteCategory(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.Delete(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func categoryResponse(category domain.Category) dto.CategoryResponse {
	return dto.CategoryResponse{ID: category.ID, Name: category.Name}
}
