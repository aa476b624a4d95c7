// Package ratecard defines the billable study catalogue.
package ratecard

// UnknownStudy is the sentinel shown when a patient references a study that
// has since been deleted from the rate card. Dangling lookups are expected
// and never an error.
const UnknownStudy = "N/A"

// Item is one billable test/study. LandingPrice is the internal cost floor
// used to compute referral commissions at registration time. Editing or
// deleting an item never touches historical patient records.
type Item struct {
	ID           string `json:"id"`
	StudyName    string `json:"studyName"`
	MRP          int64  `json:"mrp"`
	LandingPrice int64  `json:"landingPrice"`
}

// Default is the rate card seeded on first run and after a full reset.
func Default() []Item {
	return []Item{
		{ID: "1", StudyName: "USG Abdomen", MRP: 1000, LandingPrice: 800},
		{ID: "2", StudyName: "USG KUB", MRP: 1200, LandingPrice: 1000},
		{ID: "3", StudyName: "USG Pelvis", MRP: 900, LandingPrice: 700},
		{ID: "4", StudyName: "Anomaly Scan", MRP: 2500, LandingPrice: 2200},
	}
}

// Find returns the item with the given id, or false when it does not exist.
func Find(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// StudyName resolves a study id to its display name, falling back to the
// UnknownStudy sentinel for dangling references.
func StudyName(items []Item, id string) string {
	if it, ok := Find(items, id); ok {
		return it.StudyName
	}
	return UnknownStudy
}
