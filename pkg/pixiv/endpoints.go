package pixiv

import "fmt"

// API endpoints for the Pixiv app API
const (
	// BaseURL is the base URL for the app API
	BaseURL = "https://app-api.pixiv.net"

	// AuthURL is the OAuth token endpoint
	AuthURL = "https://oauth.secure.pixiv.net/auth/token"

	// Client credentials of the public Android app; required by the
	// OAuth endpoint alongside the user's refresh token.
	clientID     = "MOBrBDS8blbauoSck0ZfDbtuzpyT"
	clientSecret = "lsACyCD94FhDUtGTXi3QzcFE2uU1hqtDaKeqrdwj"

	// hashSecret salts the X-Client-Hash header
	hashSecret = "28c1fdd170a5204386cb1313c7077b34f83e4aaf4aa829ce78c231e05b0bae2c"

	// defaultUserAgent mimics the official Android client
	defaultUserAgent = "PixivAndroidApp/5.0.234 (Android 11; Pixel 5)"
)

// FollowFeedURL returns the URL for page 1 of the followed-artists feed
func FollowFeedURL(restrict string) string {
	return fmt.Sprintf("%s/v2/illust/follow?restrict=%s", BaseURL, restrict)
}
