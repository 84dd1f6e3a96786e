package domain

// SearchResult is a single semantic search hit resolved to its item.
type SearchResult struct {
	// Item is the whole matched record.
	Item Item

	// Similarity is the cosine similarity between the query embedding
	// and the item embedding, in [-1, 1].
	Similarity float64
}

// ListFilter narrows a listing. Zero value lists everything.
type ListFilter struct {
	// Kind restricts results to a single kind when non-empty.
	Kind Kind

	// Category restricts results to a single category when non-empty.
	Category Category

	// Limit caps the number of results. 0 means no cap.
	Limit int
}

// Notification is a one-way event emitted by the engine whenever the
// item index changes. Subscribers must not call back into the engine
// from inside a notification handler.
type Notification struct {
	// Type is currently always "items_updated".
	Type string

	// ItemID identifies the item that changed, when known.
	ItemID string
}

// NotifyItemsUpdated is the notification type for index mutations.
const NotifyItemsUpdated = "items_updated"
