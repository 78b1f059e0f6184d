package domain

import "time"

// Sample data installed on first run so a fresh device has something to show.

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

// SampleSessions returns the starter meditation history.
func SampleSessions() []Session {
	return []Session{
		{ID: "1", Title: "Morning Garden Meditation", Duration: "10 min", CompletedAt: mustTime("2025-05-03T08:30:00Z")},
		{ID: "2", Title: "Mindful Planting", Duration: "15 min", CompletedAt: mustTime("2025-05-04T09:15:00Z")},
		{ID: "3", Title: "Evening Nature Sounds", Duration: "20 min", CompletedAt: mustTime("2025-05-05T19:45:00Z")},
		{ID: "4", Title: "Garden Mindfulness", Duration: "10 min", CompletedAt: mustTime("2025-05-06T08:00:00Z")},
		{ID: "5", Title: "Seed to Sprout Meditation", Duration: "15 min", CompletedAt: mustTime("2025-05-07T07:30:00Z")},
	}
}

// SamplePlots returns the starter plots.
func SamplePlots() []Plot {
	return []Plot{
		{ID: "1", Name: "Vegetable Garden", Size: "10x10 ft", Plants: 2, CreatedAt: mustTime("2025-04-15T10:30:00Z")},
		{ID: "2", Name: "Herb Garden", Size: "5x5 ft", Plants: 1, CreatedAt: mustTime("2025-04-20T14:45:00Z")},
		{ID: "3", Name: "Flower Bed", Size: "8x3 ft", Plants: 0, CreatedAt: mustTime("2025-05-01T09:15:00Z")},
	}
}

// SamplePlants returns the starter plant catalogue.
func SamplePlants() []Plant {
	return []Plant{
		{
			ID: "1", Name: "Tomato", Type: "Vegetable", Sunlight: "Full Sun", Water: "Regular", Difficulty: "Easy",
			GrowthTime:  "70-85 days",
			Description: "Tomatoes are the most popular garden vegetable to grow. They require relatively little space and can yield a large harvest.",
			Image:       "https://example.com/tomato.jpg",
		},
		{
			ID: "2", Name: "Basil", Type: "Herb", Sunlight: "Full Sun", Water: "Moderate", Difficulty: "Easy",
			GrowthTime:  "50-70 days",
			Description: "Basil is a popular culinary herb. It grows quickly and can be harvested multiple times throughout the growing season.",
			Image:       "https://example.com/basil.jpg",
			InGarden:    true,
			PlotID:      "1",
		},
		{
			ID: "3", Name: "Lavender", Type: "Flower", Sunlight: "Full Sun", Water: "Low", Difficulty: "Moderate",
			GrowthTime:  "90-200 days",
			Description: "Lavender is a beautiful and fragrant perennial that attracts pollinators and can be used in cooking, crafts, and aromatherapy.",
			Image:       "https://example.com/lavender.jpg",
		},
		{
			ID: "4", Name: "Carrot", Type: "Vegetable", Sunlight: "Full Sun/Partial Shade", Water: "Moderate", Difficulty: "Moderate",
			GrowthTime:  "70-80 days",
			Description: "Carrots are root vegetables that are relatively easy to grow in loose, sandy soil. They are packed with nutrients.",
			Image:       "https://example.com/carrot.jpg",
			InGarden:    true,
			PlotID:      "1",
		},
		{
			ID: "5", Name: "Mint", Type: "Herb", Sunlight: "Partial Shade", Water: "Regular", Difficulty: "Easy",
			GrowthTime:  "70-90 days",
			Description: "Mint is a fast-growing, aromatic herb that spreads quickly. It's best grown in containers to prevent it from taking over your garden.",
			Image:       "https://example.com/mint.jpg",
			InGarden:    true,
			PlotID:      "2",
		},
	}
}

// SampleTasks returns the starter chores.
func SampleTasks() []Task {
	return []Task{
		{ID: "1", Task: "Water vegetable garden", Date: "2025-05-09", PlotID: "1"},
		{ID: "2", Task: "Harvest basil", Date: "2025-05-10", PlantID: "2"},
		{ID: "3", Task: "Plant tomato seedlings", Date: "2025-05-12", PlotID: "1"},
	}
}

// SampleRecipes returns the starter recipes.
func SampleRecipes() []Recipe {
	return []Recipe{
		{
			ID: "1", Name: "Garden Fresh Salad", Category: "Lunch", PrepTime: "15 min", Difficulty: "Easy",
			Ingredients: []string{
				"Fresh lettuce", "Cherry tomatoes", "Cucumber", "Red onion",
				"Bell pepper", "Olive oil", "Balsamic vinegar", "Salt and pepper",
			},
			GardenIngredients: []string{"lettuce", "tomatoes", "cucumber"},
			Instructions:      "Wash and chop all vegetables. Mix in a large bowl. Drizzle with olive oil and balsamic vinegar. Season with salt and pepper to taste.",
			NutritionInfo:     NutritionInfo{Calories: 120, Protein: "2g", Carbs: "10g", Fat: "8g", Fiber: "3g"},
		},
		{
			ID: "2", Name: "Herb Roasted Vegetables", Category: "Dinner", PrepTime: "45 min", Difficulty: "Medium",
			Ingredients: []string{
				"Carrots", "Potatoes", "Zucchini", "Red onion",
				"Fresh rosemary", "Fresh thyme", "Olive oil", "Salt and pepper", "Garlic",
			},
			GardenIngredients: []string{"carrots", "zucchini", "rosemary", "thyme"},
			Instructions:      "Preheat oven to 425°F. Chop vegetables into similar-sized pieces. Toss with olive oil, minced garlic, and chopped herbs. Roast for 30-35 minutes, stirring halfway through.",
			IsFavorite:        true,
			NutritionInfo:     NutritionInfo{Calories: 180, Protein: "3g", Carbs: "25g", Fat: "7g", Fiber: "5g"},
		},
		{
			ID: "3", Name: "Tomato Basil Pasta", Category: "Dinner", PrepTime: "30 min", Difficulty: "Easy",
			Ingredients: []string{
				"Pasta", "Fresh tomatoes", "Fresh basil", "Garlic",
				"Olive oil", "Parmesan cheese", "Salt and pepper",
			},
			GardenIngredients: []string{"tomatoes", "basil"},
			Instructions:      "Cook pasta according to package directions. In a pan, sauté minced garlic in olive oil. Add chopped tomatoes and cook until softened. Stir in torn basil leaves. Toss with pasta and top with grated Parmesan.",
			NutritionInfo:     NutritionInfo{Calories: 320, Protein: "10g", Carbs: "50g", Fat: "9g", Fiber: "3g"},
		},
	}
}
