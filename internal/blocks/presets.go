package blocks

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Preset template names selectable at site creation
const (
	PresetBusiness   = "business"
	PresetPortfolio  = "portfolio"
	PresetRestaurant = "restaurant"
)

// Preset returns the starter content for a template name
func Preset(name string) (*SiteContent, bool) {
	switch name {
	case PresetBusiness:
		return businessPreset(), true
	case PresetPortfolio:
		return portfolioPreset(), true
	case PresetRestaurant:
		return restaurantPreset(), true
	}
	return nil, false
}

func block(typ string, order int, data any) Block {
	raw, _ := json.Marshal(data)
	return Block{ID: uuid.New().String(), Type: typ, Order: order, Data: raw}
}

func businessPreset() *SiteContent {
	return &SiteContent{
		Theme: ThemeColors{Primary: "#3b82f6", Background: "#0f172a", Text: "#f8fafc"},
		Blocks: []Block{
			block(TypeHero, 0, HeroData{
				Heading:    "Grow Your Business Online",
				Subheading: "We help companies build a strong digital presence with modern solutions.",
				CTAText:    "Get Started",
				CTAURL:     "#",
			}),
			block(TypeCards, 1, CardsData{
				Title: "What We Offer",
				Cards: []Card{
					{Icon: "Zap", Title: "Fast Performance", Description: "Lightning-fast load times that keep your visitors engaged."},
					{Icon: "Shield", Title: "Secure & Reliable", Description: "Enterprise-grade security to protect your data and customers."},
					{Icon: "BarChart", Title: "Analytics Built In", Description: "Track your growth with powerful, easy-to-use analytics."},
				},
			}),
			block(TypeText, 2, TextData{
				Heading:       "About Us",
				Body:          "We are a team of passionate professionals dedicated to helping businesses thrive in the digital world. With years of experience, we deliver solutions that drive real results.",
				ImagePosition: "right",
			}),
			block(TypeContact, 3, ContactData{
				Email:   "hello@example.com",
				Phone:   "+1 (555) 123-4567",
				Address: "123 Business Ave, Suite 100, New York, NY 10001",
				Hours:   "Mon-Fri 9am-5pm",
			}),
		},
	}
}

func portfolioPreset() *SiteContent {
	return &SiteContent{
		Theme: ThemeColors{Primary: "#8b5cf6", Background: "#1a1a2e", Text: "#e2e8f0"},
		Blocks: []Block{
			block(TypeHero, 0, HeroData{
				Heading:    "Jane Doe",
				Subheading: "Full-Stack Developer & Designer. I craft beautiful, performant web experiences.",
				CTAText:    "View My Work",
				CTAURL:     "#",
			}),
			block(TypeCards, 1, CardsData{
				Title: "Projects",
				Cards: []Card{
					{Icon: "Code", Title: "E-Commerce Platform", Description: "A modern shopping experience built with Next.js and Stripe."},
					{Icon: "Layout", Title: "Task Management App", Description: "A collaborative project management tool with real-time updates."},
					{Icon: "Image", Title: "Portfolio Website", Description: "A creative portfolio showcasing photography and design work."},
				},
			}),
			block(TypeText, 2, TextData{
				Heading:       "About Me",
				Body:          "With over 5 years of experience in web development, I specialize in building modern, accessible, and performant applications. I love turning complex problems into simple, elegant solutions.",
				ImagePosition: "left",
			}),
			block(TypeContact, 3, ContactData{
				Email: "jane@example.com",
			}),
		},
	}
}

func restaurantPreset() *SiteContent {
	return &SiteContent{
		Theme: ThemeColors{Primary: "#d97706", Background: "#1c1917", Text: "#fafaf9"},
		Blocks: []Block{
			block(TypeHero, 0, HeroData{
				Heading:    "La Bella Cucina",
				Subheading: "Authentic Italian cuisine made with love and tradition.",
				CTAText:    "View Menu",
				CTAURL:     "#",
			}),
			block(TypeMenu, 1, MenuData{
				Categories: []MenuCategory{
					{
						Name: "Appetizers",
						Items: []MenuItem{
							{Name: "Bruschetta", Description: "Toasted bread with fresh tomatoes, garlic, and basil", Price: "$12"},
							{Name: "Caprese Salad", Description: "Fresh mozzarella, tomatoes, and basil with balsamic glaze", Price: "$14"},
						},
					},
					{
						Name: "Main Courses",
						Items: []MenuItem{
							{Name: "Spaghetti Carbonara", Description: "Classic Roman pasta with pancetta, egg, and pecorino", Price: "$22"},
							{Name: "Osso Buco", Description: "Braised veal shanks with gremolata and saffron risotto", Price: "$34"},
						},
					},
					{
						Name: "Desserts",
						Items: []MenuItem{
							{Name: "Tiramisu", Description: "Classic Italian coffee-flavored dessert", Price: "$10"},
							{Name: "Panna Cotta", Description: "Vanilla bean cream with seasonal berries", Price: "$10"},
						},
					},
				},
			}),
			block(TypeGallery, 2, GalleryData{Images: []GalleryImage{}}),
			block(TypeContact, 3, ContactData{
				Address: "456 Culinary Blvd, San Francisco, CA 94102",
				Phone:   "+1 (555) 987-6543",
				Hours:   "Mon-Thu 11am-10pm | Fri-Sat 11am-11pm | Sun 10am-9pm",
			}),
		},
	}
}
