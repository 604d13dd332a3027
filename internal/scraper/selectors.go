package scraper

// old.reddit.com DOM selectors.
// These are isolated here because Reddit changes its markup from time to time.
// Update these when browser scraping breaks.

const (
	// Listing page
	ListingTable = `#siteTable`
	PostThing    = `#siteTable > div.thing.link`
	NextButton   = `span.next-button a`

	// Thread page
	ThreadPost  = `div.sitetable.linklisting div.thing.link`
	ThreadBody  = `div.expando div.md`
	TopComment  = `div.commentarea > div.sitetable > div.thing.comment`
	CommentBody = `div.entry div.md`
)

// Common wait conditions
const (
	WaitForListing = ListingTable
	WaitForThread  = ThreadPost
)
