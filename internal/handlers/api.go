package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/service"
)

type ementaJSON struct {
	ID              int64   `json:"id"`
	Number          string  `json:"number"`
	Title           string  `json:"title"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	Summary         string  `json:"summary"`
	ExtendedSummary string  `json:"extended_summary"`
	PublicationDate *string `json:"publication_date"`
	HasAttachment   bool    `json:"has_attachment"`
	Published       bool    `json:"published"`
	Confidential    bool    `json:"confidential"`
}

func toEmentaJSON(e model.Ementa) ementaJSON {
	out := ementaJSON{
		ID:              e.ID,
		Number:          e.Number,
		Title:           e.Title,
		Type:            string(e.Type),
		Status:          string(e.Status),
		Summary:         e.Summary,
		ExtendedSummary: e.ExtendedSummary,
		HasAttachment:   e.AttachedFile.Valid,
		Published:       e.Published,
		Confidential:    e.Confidential,
	}
	if e.PublicationDate.Valid {
		d := e.PublicationDate.Time.Format("2006-01-02")
		out.PublicationDate = &d
	}
	return out
}

type protocoloJSON struct {
	ID                int64     `json:"id"`
	Number            string    `json:"number"`
	IssuedDate        time.Time `json:"issued_date"`
	TaxID             string    `json:"tax_id"`
	PersonType        string    `json:"person_type"`
	StorageLocation   string    `json:"storage_location"`
	Notes             string    `json:"notes"`
	ExternalReference *string   `json:"external_reference"`
}

func toProtocoloJSON(p model.Protocolo) protocoloJSON {
	out := protocoloJSON{
		ID:              p.ID,
		Number:          p.Number,
		IssuedDate:      p.IssuedDate,
		TaxID:           p.FormattedTaxID(),
		PersonType:      string(p.PersonType),
		StorageLocation: p.StorageLocation,
		Notes:           p.Notes,
	}
	if p.ExternalReference.Valid {
		ref := p.ExternalReference.String
		out.ExternalReference = &ref
	}
	return out
}

type pageJSON[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

func toPageJSON[S, T any](p listing.Page[S], convert func(S) T) pageJSON[T] {
	items := make([]T, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, convert(item))
	}
	return pageJSON[T]{
		Items:      items,
		Page:       p.Number,
		PageSize:   p.Size,
		TotalCount: p.TotalCount,
		TotalPages: p.TotalPages,
	}
}

func APIEmentasHandler(ementas *service.EmentaService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		criteria := listing.ParseCriteria(func(key string) string { return c.Query(key) })
		page, err := ementas.List(c.UserContext(), viewerOf(c), criteria)
		if err != nil {
			return apiError(c, logger, err)
		}
		return c.JSON(toPageJSON(page, toEmentaJSON))
	}
}

func APIEmentaHandler(ementas *service.EmentaService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		e, err := ementas.Get(c.UserContext(), viewerOf(c), id)
		if err != nil {
			return apiError(c, logger, err)
		}
		return c.JSON(toEmentaJSON(*e))
	}
}

func APIProtocolosHandler(protocolos *service.ProtocoloService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := protocolos.List(c.UserContext(), viewerOf(c), c.Query("q"),
			listing.ParsePage(c.Query("page")),
			listing.ParsePageSize(c.Query("page_size")))
		if err != nil {
			return apiError(c, logger, err)
		}
		return c.JSON(toPageJSON(page, toProtocoloJSON))
	}
}

func APIDashboardHandler(dashboard *service.DashboardService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := dashboard.Dashboard(c.UserContext(), viewerOf(c))
		if err != nil {
			return apiError(c, logger, err)
		}

		byType := make(map[string]int, len(d.ByType))
		for t, n := range d.ByType {
			byType[string(t)] = n
		}
		recent := make([]ementaJSON, 0, len(d.Recent))
		for _, e := range d.Recent {
			recent = append(recent, toEmentaJSON(e))
		}
		return c.JSON(fiber.Map{
			"published_total": d.PublishedTotal,
			"by_type":         byType,
			"recent":          recent,
		})
	}
}
