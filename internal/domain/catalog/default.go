package catalog

import "github.com/shopspring/decimal"

// Default returns the storefront catalog.
func Default(promo Promotion) *Catalog {
	return New([]Product{
		{
			Title:            "Western FinAstro Concepts",
			ShortCode:        "WFAC",
			ShortDescription: "Learn W.D. Gann's methods and astronomical cycles for market analysis.",
			Features: []string{
				"WD Gann Square of 9",
				"Gann Price Levels",
				"Astrological Turn Dates",
				"McWhirter and Benner Cycles",
				"Time and Price Relationships",
				"Includes 2 TradingView indicators (TPP, GMPL) and Excel Spreadsheets",
				"Course Delivery via Weekly Zoom Live Sessions (4 hrs per week)",
				"Discord Community for course duration for anytime Q&A and support",
			},
			Price:    decimal.NewFromInt(30000),
			Category: CategoryCourses,
			VideoURL: "https://www.youtube.com/embed/abc123",
		},
		{
			Title:            "Vedic Financial Astrology",
			ShortCode:        "VFA",
			ShortDescription: "Learn traditional Vedic astrology concepts applied to modern markets.",
			Features: []string{
				"Basic Vedic Astrology Concepts",
				"Planetary Transits and Market Impact",
				"Planetary Aspects and Reversal Points",
				"Market Timing Techniques",
				"Access to 2 TradingView indicators (Planetary Sign Transits and Aspects)",
				"Case Studies and Examples",
				"Course Delivery via Weekly Zoom Live Sessions (4 hrs per week)",
				"Discord Community for course duration for anytime Q&A and support",
			},
			Price:    decimal.NewFromInt(30000),
			Category: CategoryCourses,
			VideoURL: "https://www.youtube.com/embed/def456",
		},
		{
			Title:            "TradingView Indicators",
			ShortCode:        "TVIND",
			ShortDescription: "Professional astrological indicators built using PineScript for TradingView platform.",
			Features: []string{
				"Time and Price Projection (TPP)",
				"Gann Major Price Levels (GMPL)",
				"Planetary Sign Transits and Retrograde periods",
				"Planetary Aspects",
				"LifeTime access to indicator updates",
				"Technical Support",
			},
			Price:    decimal.NewFromInt(35000),
			Category: CategoryIndicators,
			VideoURL: "https://www.youtube.com/embed/ghi789",
		},
		{
			Title:            "StarLightTrader Pro",
			ShortCode:        "SLTPRO",
			ShortDescription: "Comprehensive package bundle combining Western & Vedic methodologies course content along with all our TradingView indicators.",
			Features: []string{
				"All Western & Vedic FinAstro course content",
				"All 4 TradingView Indicators",
				"BONUS - Trading Psychology & Risk Management Module",
				"Course Delivery via Weekly Zoom Live Sessions (4 hrs per week)",
				"Discord Community access and Trade Idea Service for 12 months",
			},
			Price:    decimal.NewFromInt(60000),
			Category: CategoryBundles,
			VideoURL: "https://www.youtube.com/embed/jkl012",
		},
	}, promo)
}
