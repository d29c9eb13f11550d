package ai

// Deterministic fallbacks used when the copy model returns data we
// cannot use. Keeping them constant makes degraded runs reproducible.

const defaultProductTitle = "Handcrafted Artisan Toy"

var defaultCaptions = []string{
	"A beautifully handcrafted artisanal creation, made with love and extraordinary attention to detail. Perfect as a unique gift for any occasion.",
	"There's something magical about a toy made by hand — every detail tells a story of care and craftsmanship.",
	"Handmade. Heartfelt. Built to last a lifetime of play and imagination.",
}

var defaultHashtags = []string{
	"handmade",
	"artisan",
	"crafttoy",
	"handcrafted",
	"giftideas",
	"uniquetoys",
	"madewithlove",
	"artisantoy",
	"craftboost",
	"shopsmall",
}
