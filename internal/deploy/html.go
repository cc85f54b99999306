package deploy

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"ion7/internal/blocks"
)

// Inline SVG icons rendered into static pages
var icons = map[string]string{
	"mail":     `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><rect width="20" height="16" x="2" y="4" rx="2"/><path d="m22 7-8.97 5.7a1.94 1.94 0 0 1-2.06 0L2 7"/></svg>`,
	"phone":    `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M22 16.92v3a2 2 0 0 1-2.18 2 19.79 19.79 0 0 1-8.63-3.07 19.5 19.5 0 0 1-6-6 19.79 19.79 0 0 1-3.07-8.67A2 2 0 0 1 4.11 2h3a2 2 0 0 1 2 1.72 12.84 12.84 0 0 0 .7 2.81 2 2 0 0 1-.45 2.11L8.09 9.91a16 16 0 0 0 6 6l1.27-1.27a2 2 0 0 1 2.11-.45 12.84 12.84 0 0 0 2.81.7A2 2 0 0 1 22 16.92z"/></svg>`,
	"mapPin":   `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M20 10c0 6-8 12-8 12s-8-6-8-12a8 8 0 0 1 16 0Z"/><circle cx="12" cy="10" r="3"/></svg>`,
	"clock":    `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><circle cx="12" cy="12" r="10"/><polyline points="12 6 12 12 16 14"/></svg>`,
	"check":    `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M20 6 9 17l-5-5"/></svg>`,
	"Zap":      `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><polygon points="13 2 3 14 12 14 11 22 21 10 12 10 13 2"/></svg>`,
	"Shield":   `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M20 13c0 5-3.5 7.5-7.66 8.95a1 1 0 0 1-.67-.01C7.5 20.5 4 18 4 13V6a1 1 0 0 1 1-1c2 0 4.5-1.2 6.24-2.72a1.17 1.17 0 0 1 1.52 0C14.51 3.81 17 5 19 5a1 1 0 0 1 1 1z"/></svg>`,
	"BarChart": `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><line x1="12" x2="12" y1="20" y2="10"/><line x1="18" x2="18" y1="20" y2="4"/><line x1="6" x2="6" y1="20" y2="16"/></svg>`,
	"Code":     `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><polyline points="16 18 22 12 16 6"/><polyline points="8 6 2 12 8 18"/></svg>`,
	"Layout":   `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><rect width="18" height="18" x="3" y="3" rx="2" ry="2"/><line x1="3" x2="21" y1="9" y2="9"/><line x1="9" x2="9" y1="21" y2="9"/></svg>`,
	"Image":    `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><rect width="18" height="18" x="3" y="3" rx="2" ry="2"/><circle cx="9" cy="9" r="2"/><path d="m21 15-3.086-3.086a2 2 0 0 0-2.828 0L6 21"/></svg>`,
	"Star":     `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><polygon points="12 2 15.09 8.26 22 9.27 17 14.14 18.18 21.02 12 17.77 5.82 21.02 7 14.14 2 9.27 8.91 8.26 12 2"/></svg>`,
	"Heart":    `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><path d="M19 14c1.49-1.46 3-3.21 3-5.5A5.5 5.5 0 0 0 16.5 3c-1.76 0-3 .5-4.5 2-1.5-1.5-2.74-2-4.5-2A5.5 5.5 0 0 0 2 8.5c0 2.3 1.5 4.05 3 5.5l7 7Z"/></svg>`,
	"Globe":    `<svg xmlns="http://www.w3.org/2000/svg" width="32" height="32" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round"><circle cx="12" cy="12" r="10"/><path d="M12 2a14.5 14.5 0 0 0 0 20 14.5 14.5 0 0 0 0-20"/><path d="M2 12h20"/></svg>`,
}

func esc(s string) string {
	return html.EscapeString(s)
}

// GenerateSiteHTML renders the full static page for a site. Blocks are
// rendered in order; unknown or undecodable blocks are skipped.
func GenerateSiteHTML(content *blocks.SiteContent, domainName string) string {
	sorted := make([]blocks.Block, len(content.Blocks))
	copy(sorted, content.Blocks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var body strings.Builder
	for _, b := range sorted {
		if section := renderBlock(b, content.Theme); section != "" {
			body.WriteString(section)
			body.WriteString("\n")
		}
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8"/>
  <meta name="viewport" content="width=device-width,initial-scale=1"/>
  <title>%s</title>
  <style>
    *,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
    body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,Helvetica,Arial,sans-serif;
      color:%s;background:%s;
      line-height:1.5;-webkit-font-smoothing:antialiased}
    img{max-width:100%%;display:block}
    a{color:inherit}
  </style>
</head>
<body>
%s</body>
</html>`, esc(domainName), esc(content.Theme.Text), esc(content.Theme.Background), body.String())
}

func renderBlock(b blocks.Block, theme blocks.ThemeColors) string {
	switch b.Type {
	case blocks.TypeHero:
		var data blocks.HeroData
		if json.Unmarshal(b.Data, &data) != nil {
			return ""
		}
		return renderHero(data, theme)
	case blocks.TypeCards:
		var data blocks.CardsData
		if json.Unmarshal(b.Data, &data) != nil {
			return ""
		}
		return renderCards(data, theme)
	case blocks.TypeText:
		var data blocks.TextData
		if json.Unmarshal(b.Data, &data) != nil {
			return ""
		}
		return renderText(data)
	case blocks.TypeGallery:
		var data blocks.GalleryData
		if json.Unmarshal(b.Data, &data) != nil {
			return ""
		}
		return renderGallery(data)
	case blocks.TypeContact:
		var data blocks.ContactData
		if json.Unmarshal(b.Data, &data) != nil {
			return ""
		}
		return renderContact(data, theme)
	case blocks.TypeMenu:
		var data blocks.MenuData
		if json.Unmarshal(b.Data, &data) != nil {
			return ""
		}
		return renderMenu(data, theme)
	case blocks.TypePricing:
		var data blocks.PricingData
		if json.Unmarshal(b.Data, &data) != nil {
			return ""
		}
		return renderPricing(data, theme)
	}
	return ""
}

func renderHero(data blocks.HeroData, theme blocks.ThemeColors) string {
	var bgStyle, overlay string
	if data.BgImage != "" {
		bgStyle = fmt.Sprintf("background-image:url(%s);background-size:cover;background-position:center;", esc(data.BgImage))
		overlay = `<div style="position:absolute;inset:0;background:rgba(0,0,0,0.6)"></div>`
	}

	var cta string
	if data.CTAText != "" {
		ctaURL := data.CTAURL
		if ctaURL == "" {
			ctaURL = "#"
		}
		cta = fmt.Sprintf(`<a href="%s" style="margin-top:2rem;display:inline-block;border-radius:0.5rem;padding:0.75rem 2rem;font-size:0.875rem;font-weight:600;color:#fff;background:%s;text-decoration:none">%s</a>`,
			esc(ctaURL), esc(theme.Primary), esc(data.CTAText))
	}

	return fmt.Sprintf(`<section style="position:relative;display:flex;min-height:70vh;align-items:center;justify-content:center;text-align:center;%s">
  %s
  <div style="position:relative;z-index:10;max-width:48rem;margin:0 auto;padding:0 1.5rem">
    <h1 style="font-size:3rem;font-weight:700;line-height:1.1">%s</h1>
    <p style="margin-top:1rem;font-size:1.125rem;opacity:0.8">%s</p>
    %s
  </div>
</section>`, bgStyle, overlay, esc(data.Heading), esc(data.Subheading), cta)
}

func renderCards(data blocks.CardsData, theme blocks.ThemeColors) string {
	var title string
	if data.Title != "" {
		title = fmt.Sprintf(`<h2 style="margin-bottom:2.5rem;text-align:center;font-size:1.875rem;font-weight:700">%s</h2>`, esc(data.Title))
	}

	var cards strings.Builder
	for _, card := range data.Cards {
		iconSVG, ok := icons[card.Icon]
		if !ok {
			iconSVG = icons["Zap"]
		}
		fmt.Fprintf(&cards, `<div style="border-radius:0.5rem;padding:1.5rem;background:%s15">
      <div style="color:%s">%s</div>
      <h3 style="margin-top:1rem;font-size:1.125rem;font-weight:600">%s</h3>
      <p style="margin-top:0.5rem;font-size:0.875rem;opacity:0.7">%s</p>
    </div>
`, esc(theme.Primary), esc(theme.Primary), iconSVG, esc(card.Title), esc(card.Description))
	}

	return fmt.Sprintf(`<section style="max-width:64rem;margin:0 auto;padding:5rem 1.5rem">
  %s
  <div style="display:grid;gap:2rem;grid-template-columns:repeat(auto-fit,minmax(250px,1fr))">
    %s
  </div>
</section>`, title, cards.String())
}

func renderText(data blocks.TextData) string {
	var img string
	if data.Image != "" {
		img = fmt.Sprintf(`<img src="%s" alt="%s" style="width:16rem;height:16rem;border-radius:0.5rem;object-fit:cover;flex-shrink:0"/>`,
			esc(data.Image), esc(data.Heading))
	}

	textAlign := ""
	if data.Image == "" {
		textAlign = "max-width:48rem;margin:0 auto;text-align:center;"
	}

	textBlock := fmt.Sprintf(`<div style="%s">
    <h2 style="font-size:1.875rem;font-weight:700">%s</h2>
    <p style="margin-top:1rem;line-height:1.7;opacity:0.8;white-space:pre-line">%s</p>
  </div>`, textAlign, esc(data.Heading), esc(data.Body))

	content := textBlock
	if img != "" {
		if data.ImagePosition == "left" {
			content = img + textBlock
		} else {
			content = textBlock + img
		}
	}

	return fmt.Sprintf(`<section style="max-width:64rem;margin:0 auto;padding:5rem 1.5rem">
  <div style="display:flex;flex-wrap:wrap;align-items:center;gap:3rem;justify-content:center">
    %s
  </div>
</section>`, content)
}

func renderGallery(data blocks.GalleryData) string {
	if len(data.Images) == 0 {
		return ""
	}

	var imgs strings.Builder
	for _, img := range data.Images {
		fmt.Fprintf(&imgs, `<img src="%s" alt="%s" style="width:100%%;height:12rem;border-radius:0.5rem;object-fit:cover"/>
`, esc(img.URL), esc(img.Alt))
	}

	return fmt.Sprintf(`<section style="max-width:64rem;margin:0 auto;padding:4rem 1.5rem">
  <h2 style="text-align:center;font-size:1.875rem;font-weight:700">Gallery</h2>
  <div style="margin-top:2rem;display:grid;grid-template-columns:repeat(auto-fit,minmax(200px,1fr));gap:1rem">
    %s
  </div>
</section>`, imgs.String())
}

func renderContact(data blocks.ContactData, theme blocks.ThemeColors) string {
	items := []struct {
		icon  string
		value string
	}{
		{icons["mail"], data.Email},
		{icons["phone"], data.Phone},
		{icons["mapPin"], data.Address},
		{icons["clock"], data.Hours},
	}

	var rows strings.Builder
	for _, item := range items {
		if item.value == "" {
			continue
		}
		fmt.Fprintf(&rows, `<div style="display:flex;align-items:center;gap:0.75rem">
      <span style="color:%s;flex-shrink:0">%s</span>
      <span style="font-size:0.875rem">%s</span>
    </div>
`, esc(theme.Primary), item.icon, esc(item.value))
	}

	return fmt.Sprintf(`<section style="border-top:1px solid %s20;padding:4rem 0">
  <div style="max-width:64rem;margin:0 auto;padding:0 1.5rem">
    <h2 style="font-size:1.5rem;font-weight:700">Contact</h2>
    <div style="margin-top:1.5rem;display:grid;gap:1rem;grid-template-columns:repeat(auto-fit,minmax(250px,1fr))">
      %s
    </div>
  </div>
</section>`, esc(theme.Text), rows.String())
}

func renderMenu(data blocks.MenuData, theme blocks.ThemeColors) string {
	var categories strings.Builder
	for _, cat := range data.Categories {
		var items strings.Builder
		for _, item := range cat.Items {
			fmt.Fprintf(&items, `<div style="display:flex;align-items:baseline;justify-content:space-between;border-bottom:1px solid %s15;padding-bottom:0.75rem">
        <div>
          <p style="font-weight:500">%s</p>
          <p style="font-size:0.875rem;opacity:0.6">%s</p>
        </div>
        <span style="margin-left:1rem;white-space:nowrap;font-weight:600;color:%s">%s</span>
      </div>
`, esc(theme.Text), esc(item.Name), esc(item.Description), esc(theme.Primary), esc(item.Price))
		}

		fmt.Fprintf(&categories, `<div>
      <h3 style="font-size:1.25rem;font-weight:600;color:%s">%s</h3>
      <div style="margin-top:1rem;display:flex;flex-direction:column;gap:1rem">
        %s
      </div>
    </div>
`, esc(theme.Primary), esc(cat.Name), items.String())
	}

	return fmt.Sprintf(`<section style="max-width:56rem;margin:0 auto;padding:5rem 1.5rem">
  <h2 style="text-align:center;font-size:1.875rem;font-weight:700">Our Menu</h2>
  <div style="margin-top:3rem;display:flex;flex-direction:column;gap:3rem">
    %s
  </div>
</section>`, categories.String())
}

func renderPricing(data blocks.PricingData, theme blocks.ThemeColors) string {
	var plans strings.Builder
	for _, plan := range data.Plans {
		var features strings.Builder
		for _, f := range plan.Features {
			fmt.Fprintf(&features, `<li style="display:flex;align-items:center;gap:0.5rem;font-size:0.875rem">
        <span style="color:%s;flex-shrink:0">%s</span>
        %s
      </li>
`, esc(theme.Primary), icons["check"], esc(f))
		}

		borderColor := theme.Text + "20"
		bgColor := "transparent"
		if plan.Highlighted {
			borderColor = theme.Primary
			bgColor = theme.Primary + "10"
		}

		var interval string
		if plan.Interval != "" {
			interval = fmt.Sprintf(`<span style="margin-left:0.25rem;font-size:0.875rem;opacity:0.6">/%s</span>`, esc(plan.Interval))
		}

		fmt.Fprintf(&plans, `<div style="display:flex;flex-direction:column;border-radius:0.5rem;border:1px solid %s;padding:1.5rem;background:%s">
      <h3 style="font-size:1.125rem;font-weight:600">%s</h3>
      <div style="margin-top:0.5rem">
        <span style="font-size:1.875rem;font-weight:700">%s</span>
        %s
      </div>
      <ul style="margin-top:1.5rem;flex:1;list-style:none;padding:0;display:flex;flex-direction:column;gap:0.5rem">
        %s
      </ul>
    </div>
`, esc(borderColor), esc(bgColor), esc(plan.Name), esc(plan.Price), interval, features.String())
	}

	return fmt.Sprintf(`<section style="max-width:64rem;margin:0 auto;padding:5rem 1.5rem">
  <h2 style="margin-bottom:3rem;text-align:center;font-size:1.875rem;font-weight:700">Pricing</h2>
  <div style="display:grid;gap:1.5rem;grid-template-columns:repeat(auto-fit,minmax(250px,1fr))">
    %s
  </div>
</section>`, plans.String())
}
