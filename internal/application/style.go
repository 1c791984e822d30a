package application

import "strings"

// Palette maps event classes to colors.
type Palette struct {
	ExternalColor string
	PrivateColor  string
	DefaultColor  string
	Categories    map[string]string
}

// DefaultPalette returns the built-in colors.
func DefaultPalette() Palette {
	return Palette{
		ExternalColor: "#9e9e9e",
		PrivateColor:  "#78909c",
		DefaultColor:  "#3788d8",
		Categories: map[string]string{
			"worship":  "#8e24aa",
			"meeting":  "#039be5",
			"youth":    "#f4511e",
			"outreach": "#33b679",
		},
	}
}

// WithCategories returns a copy of the palette with category colors overlaid.
func (p Palette) WithCategories(colors map[string]string) Palette {
	merged := make(map[string]string, len(p.Categories)+len(colors))
	for name, color := range p.Categories {
		merged[name] = color
	}
	for name, color := range colors {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || strings.TrimSpace(color) == "" {
			continue
		}
		merged[name] = strings.TrimSpace(color)
	}
	p.Categories = merged
	return p
}

// StyleFor derives the display style from origin, visibility and category only.
func StyleFor(p Palette, origin Origin, visibility Visibility, category string) Style {
	switch origin {
	case OriginExternal:
		return Style{
			BackgroundColor: p.ExternalColor,
			BorderColor:     p.ExternalColor,
			TextColor:       "#ffffff",
			ClassNames:      []string{"event-external", "event-readonly"},
			Editable:        false,
		}
	case OriginLocal:
		if visibility == VisibilityPrivate {
			return Style{
				BackgroundColor: p.PrivateColor,
				BorderColor:     p.PrivateColor,
				TextColor:       "#ffffff",
				ClassNames:      []string{"event-local", "event-private"},
				Editable:        true,
			}
		}
		color := p.DefaultColor
		if c, ok := p.Categories[strings.ToLower(strings.TrimSpace(category))]; ok {
			color = c
		}
		return Style{
			BackgroundColor: color,
			BorderColor:     color,
			TextColor:       "#ffffff",
			ClassNames:      []string{"event-local", "event-public"},
			Editable:        true,
		}
	default:
		return Style{BackgroundColor: p.DefaultColor, BorderColor: p.DefaultColor, TextColor: "#ffffff"}
	}
}

func localStyle(p Palette, event CalendarEvent) Style {
	return StyleFor(p, OriginLocal, event.Visibility, event.Category)
}

func externalStyle(p Palette) Style {
	return StyleFor(p, OriginExternal, "", "")
}
