package geo

// DefaultSectorColor is used for sectors without an assigned color.
const DefaultSectorColor = "#6B7280"

var sectorColors = map[string]string{
	"Agriculture":     "#16A34A",
	"Apparel":         "#DB2777",
	"Automotive":      "#DC2626",
	"Chemicals":       "#9333EA",
	"Electronics":     "#2563EB",
	"Energy":          "#F59E0B",
	"Fisheries":       "#0891B2",
	"Food Processing": "#65A30D",
	"Furniture":       "#92400E",
	"ICT Services":    "#4F46E5",
	"Machinery":       "#475569",
	"Metals":          "#78716C",
	"Minerals":        "#A16207",
	"Pharmaceuticals": "#0D9488",
	"Services":        "#7C3AED",
	"Textiles":        "#E11D48",
	"Tourism":         "#EA580C",
	"Wine":            "#7F1D1D",
}

// SectorColor returns the display color for a sector name.
func SectorColor(sector string) string {
	if c, ok := sectorColors[sector]; ok {
		return c
	}
	return DefaultSectorColor
}
