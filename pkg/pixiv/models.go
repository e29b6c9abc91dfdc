package pixiv

// IllustID identifies a single work. IDs are opaque; no ordering between
// them is assumed even though the feed itself is reverse chronological.
type IllustID uint64

// ImageURLs holds the thumbnail variants of a work
type ImageURLs struct {
	SquareMedium string `json:"square_medium"`
	Medium       string `json:"medium"`
	Large        string `json:"large"`
}

// Illust represents a single work in the followed-artists feed
type Illust struct {
	ID           IllustID  `json:"id"`
	Title        string    `json:"title"`
	CreateDate   string    `json:"create_date"`
	IsBookmarked bool      `json:"is_bookmarked"`
	ImageURLs    ImageURLs `json:"image_urls"`
}

// Page is one page of the feed plus an opaque cursor to the next page.
// An empty NextURL means the feed is exhausted.
type Page struct {
	Illusts []Illust `json:"illusts"`
	NextURL string   `json:"next_url"`
}

// authResponse is the OAuth token endpoint response
type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
