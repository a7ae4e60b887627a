package grocery

import "strings"

const (
	Produce   = "Produce"
	Dairy     = "Dairy"
	Meat      = "Meat & Seafood"
	Bakery    = "Bakery"
	Deli      = "Deli"
	Frozen    = "Frozen"
	Beverages = "Beverages"
	Condiment = "Condiments"
	Leftovers = "Leftovers"
	Other     = "Other"
)

// Categorize returns the fridge shelf category for the given item name.
// It performs case-insensitive matching: exact match first, then substring match.
// Falls back to Other if no match is found.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	// substringMatches is ordered most specific first
	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return Other
}

var exactMatch = map[string]string{
	"apple":    Produce,
	"apples":   Produce,
	"berries":  Produce,
	"grapes":   Produce,
	"lettuce":  Produce,
	"spinach":  Produce,
	"carrots":  Produce,
	"celery":   Produce,
	"cucumber": Produce,
	"tomatoes": Produce,
	"avocado":  Produce,
	"herbs":    Produce,

	"milk":   Dairy,
	"butter": Dairy,
	"cheese": Dairy,
	"yogurt": Dairy,
	"cream":  Dairy,
	"eggs":   Dairy,
	"kefir":  Dairy,

	"chicken": Meat,
	"beef":    Meat,
	"pork":    Meat,
	"fish":    Meat,
	"salmon":  Meat,
	"shrimp":  Meat,
	"mince":   Meat,

	"bread":     Bakery,
	"bagels":    Bakery,
	"tortillas": Bakery,

	"ham":    Deli,
	"salami": Deli,
	"hummus": Deli,
	"tofu":   Deli,

	"juice": Beverages,
	"soda":  Beverages,
	"beer":  Beverages,
	"wine":  Beverages,

	"ketchup": Condiment,
	"mustard": Condiment,
	"mayo":    Condiment,
	"pesto":   Condiment,
	"jam":     Condiment,
}

var substringMatches = []struct {
	keyword  string
	category string
}{
	{"ice cream", Frozen},
	{"frozen", Frozen},
	{"popsicle", Frozen},

	{"leftover", Leftovers},
	{"takeout", Leftovers},
	{"soup", Leftovers},
	{"curry", Leftovers},

	{"sour cream", Dairy},
	{"cream cheese", Dairy},
	{"cottage", Dairy},
	{"yoghurt", Dairy},
	{"yogurt", Dairy},
	{"cheese", Dairy},
	{"milk", Dairy},
	{"egg", Dairy},

	{"sliced turkey", Deli},
	{"prosciutto", Deli},
	{"salami", Deli},
	{"hummus", Deli},

	{"chicken", Meat},
	{"steak", Meat},
	{"sausage", Meat},
	{"bacon", Meat},
	{"fillet", Meat},
	{"salmon", Meat},
	{"beef", Meat},
	{"pork", Meat},

	{"baguette", Bakery},
	{"bread", Bakery},
	{"muffin", Bakery},
	{"croissant", Bakery},

	{"orange juice", Beverages},
	{"smoothie", Beverages},
	{"juice", Beverages},

	{"sauce", Condiment},
	{"dressing", Condiment},
	{"salsa", Condiment},

	{"lettuce", Produce},
	{"salad", Produce},
	{"berr", Produce},
	{"pepper", Produce},
	{"onion", Produce},
	{"mushroom", Produce},
	{"fruit", Produce},
}
