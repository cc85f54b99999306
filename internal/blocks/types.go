package blocks

import (
	"encoding/json"
	"fmt"
)

// Block types a site page can be composed of
const (
	TypeHero    = "hero"
	TypeCards   = "cards"
	TypeText    = "text"
	TypeGallery = "gallery"
	TypeContact = "contact"
	TypeMenu    = "menu"
	TypePricing = "pricing"
)

var knownTypes = map[string]bool{
	TypeHero:    true,
	TypeCards:   true,
	TypeText:    true,
	TypeGallery: true,
	TypeContact: true,
	TypeMenu:    true,
	TypePricing: true,
}

// ThemeColors holds the three colors a site theme is built from
type ThemeColors struct {
	Primary    string `json:"primary"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Block is one section of a site page. Data is decoded per Type.
type Block struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Order int             `json:"order"`
	Data  json.RawMessage `json:"data"`
}

// SiteContent is the full editable content of a site
type SiteContent struct {
	Theme  ThemeColors `json:"theme"`
	Blocks []Block     `json:"blocks"`
}

// HeroData is a full-width banner with heading and call-to-action
type HeroData struct {
	Heading    string `json:"heading"`
	Subheading string `json:"subheading"`
	CTAText    string `json:"ctaText"`
	CTAURL     string `json:"ctaUrl"`
	BgImage    string `json:"bgImage"`
}

// Card is one entry in a cards grid
type Card struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CardsData is a grid of feature or service cards
type CardsData struct {
	Title string `json:"title"`
	Cards []Card `json:"cards"`
}

// TextData is a text section with an optional side image
type TextData struct {
	Heading       string `json:"heading"`
	Body          string `json:"body"`
	Image         string `json:"image"`
	ImagePosition string `json:"imagePosition"` // "left" or "right"
}

// GalleryImage is one image in a gallery grid
type GalleryImage struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// GalleryData is a grid of images
type GalleryData struct {
	Images []GalleryImage `json:"images"`
}

// ContactData holds contact details rendered as a footer section
type ContactData struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Hours   string `json:"hours"`
}

// MenuItem is one dish or product on a menu
type MenuItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// MenuCategory groups menu items under a heading
type MenuCategory struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// MenuData is a categorized menu or price list
type MenuData struct {
	Categories []MenuCategory `json:"categories"`
}

// PricingPlan is one column in a pricing comparison
type PricingPlan struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Interval    string   `json:"interval"`
	Features    []string `json:"features"`
	Highlighted bool     `json:"highlighted"`
}

// PricingData is a pricing plan comparison section
type PricingData struct {
	Plans []PricingPlan `json:"plans"`
}

// Validate checks structural validity of site content: known block types,
// non-empty block IDs, and data that decodes for its declared type.
func Validate(content *SiteContent) error {
	for i := range content.Blocks {
		b := &content.Blocks[i]
		if b.ID == "" {
			return fmt.Errorf("block %d: missing id", i)
		}
		if !knownTypes[b.Type] {
			return fmt.Errorf("block %d: unknown type %q", i, b.Type)
		}
		if err := decodeData(b); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, b.Type, err)
		}
	}
	return nil
}

func decodeData(b *Block) error {
	var target any
	switch b.Type {
	case TypeHero:
		target = &HeroData{}
	case TypeCards:
		target = &CardsData{}
	case TypeText:
		target = &TextData{}
	case TypeGallery:
		target = &GalleryData{}
	case TypeContact:
		target = &ContactData{}
	case TypeMenu:
		target = &MenuData{}
	case TypePricing:
		target = &PricingData{}
	}
	if len(b.Data) == 0 {
		return fmt.Errorf("missing data")
	}
	return json.Unmarshal(b.Data, target)
}
