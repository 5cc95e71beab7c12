package vision

import (
	"fmt"
	"strings"

	"github.com/majicagent/photo-pipeline/internal/models"
)

const classificationPrompt = `Classify this real estate image into exactly one of these categories: "exterior" (outside photo of building), "empty_interior" (interior empty room with no furniture), "cluttered_interior" (interior with furniture/clutter). Respond with only the category name, nothing else.`

const fixtureRestrictions = `CRITICAL RESTRICTIONS - DO NOT add, remove, or modify ANY permanent fixtures: no fireplaces, built-in shelving, built-in hutches, kitchen cabinets, bathroom vanities, ceiling lights, wall sconces, crown molding, or any fixtures attached to walls/ceilings. Keep ALL existing architectural elements and permanent installations exactly as they are.`

// enhancementPrompt builds the staging prompt for a classification. A
// custom prompt (reprocess) overrides the classification-derived one
// entirely; a room hint is prefixed when present.
func enhancementPrompt(classification, roomHint, customPrompt string) string {
	if customPrompt != "" {
		return customPrompt
	}

	roomPrefix := ""
	if roomHint != "" {
		roomPrefix = fmt.Sprintf("This is a %s. ", strings.ToLower(roomHint))
	}

	switch classification {
	case models.ClassificationClutteredInterior:
		return roomPrefix + "Create a picture of this cluttered room transformed into a professionally staged interior. " +
			"Remove all clutter and mess while keeping existing furniture that fits well. " + fixtureRestrictions + " " +
			"Only add or rearrange moveable staging furniture and decorative items that a staging company could realistically bring. " +
			"Ensure any new furniture is properly scaled to match the room dimensions and ceiling height. " +
			"Make it look clean, organized, and ready for a real estate showing."
	case models.ClassificationEmptyInterior:
		return roomPrefix + "Create a picture of this empty room furnished as a professionally staged home. " +
			"Add ONLY moveable staging furniture: sofas, chairs, coffee tables, dining tables, rugs, plants, artwork on easels, and decorative items that sit on floors or existing surfaces. " + fixtureRestrictions + " " +
			"Only add furniture and decor that a staging company could realistically bring in and remove. " +
			"Ensure all furniture is properly scaled to match the room size and proportions. " +
			"Use existing room lighting and add only portable table lamps or floor lamps if needed."
	case models.ClassificationExterior:
		return roomPrefix + "Create a picture of this property exterior enhanced for real estate. " +
			"Improve lighting to golden hour quality, enhance landscaping with appropriately scaled plants and features, remove any temporary objects like trash cans or vehicles. " +
			"Keep all existing architectural features, windows, doors, and building elements exactly as they are. " +
			"Ensure any landscaping additions are properly proportioned to the building size and maintain realistic scale."
	default:
		return roomPrefix + "Create an enhanced version of this real estate photo that looks professional and appealing to buyers. " +
			"Keep all existing architectural elements, fixtures, and built-in features unchanged. " +
			"Only improve lighting, colors, and add appropriately scaled decorative elements that enhance the space without structural modifications."
	}
}
