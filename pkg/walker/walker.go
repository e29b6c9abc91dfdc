package walker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"pixivwatch/pkg/errors"
	"pixivwatch/pkg/logger"
	"pixivwatch/pkg/pixiv"
	"pixivwatch/pkg/state"
)

// FeedSource supplies authenticated page fetches by opaque cursor
type FeedSource interface {
	FetchFollowFeed(ctx context.Context) (*pixiv.Page, error)
	FetchPage(ctx context.Context, nextURL string) (*pixiv.Page, error)
}

// ThumbnailFetcher transfers a work's thumbnail
type ThumbnailFetcher interface {
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// Options bound a single traversal
type Options struct {
	// MaxPages is the hard page-fetch ceiling per tick
	MaxPages int
	// MinSkipPages is the minimum depth before the skip heuristic may trigger
	MinSkipPages int
}

// Walker drives one feed traversal per tick. It mutates the state in place:
// either a fully consistent new state is committed or the prior state is
// left completely untouched.
type Walker struct {
	feed      FeedSource
	thumbs    ThumbnailFetcher
	imagePath string
	tz        *time.Location
	logger    logger.Logger
}

// New creates a Walker writing marker thumbnails to imagePath
func New(feed FeedSource, thumbs ThumbnailFetcher, imagePath string) *Walker {
	return &Walker{
		feed:      feed,
		thumbs:    thumbs,
		imagePath: imagePath,
		tz:        time.Local,
		logger:    logger.GetLogger(),
	}
}

// Refresh walks the feed looking for the most recent bookmarked work.
//
// The traversal operates on a scratch copy of st and commits it only at a
// success return, so any failure partway through leaves st untouched and
// the next tick retries from the last committed state.
func (w *Walker) Refresh(ctx context.Context, st *state.State, opts Options) error {
	page, err := w.feed.FetchFollowFeed(ctx)
	if err != nil {
		return err
	}

	scratch := st.Clone()
	pn := 1
	seen := state.NewIDSet()

	for {
		w.logger.DebugWithFields("scanning page", map[string]interface{}{
			"page":    pn,
			"illusts": len(page.Illusts),
		})

		// Eligible only from MinSkipPages on, and only while every
		// non-bookmarked work was already visited in an earlier tick.
		maySkip := pn >= opts.MinSkipPages

		for _, illust := range page.Illusts {
			if illust.IsBookmarked {
				if scratch.MarkerID != illust.ID {
					if err := w.adoptMarker(ctx, scratch, illust); err != nil {
						return err
					}
				}
				scratch.Remain = false
				scratch.Skip = false
				scratch.Visited = seen
				*st = *scratch
				return nil
			}
			seen.Add(illust.ID)
			if maySkip && !scratch.Visited.Contains(illust.ID) {
				maySkip = false
			}
		}

		if maySkip {
			if !scratch.Skip {
				w.logger.WarnWithFields("feed unchanged, skipping", map[string]interface{}{
					"page": pn,
				})
				scratch.Skip = true
			}
			scratch.Visited.Union(seen)
			*st = *scratch
			return nil
		}

		if page.NextURL != "" {
			if pn < opts.MaxPages {
				page, err = w.feed.FetchPage(ctx, page.NextURL)
				if err != nil {
					return err
				}
				pn++
				continue
			}
			// Marker not found within budget and more unseen feed exists
			if !scratch.Remain {
				w.logger.WarnWithFields("reached page budget", map[string]interface{}{
					"page": pn,
				})
				scratch.Remain = true
			}
		} else {
			w.logger.Warn("feed exhausted without marker")
			scratch.Remain = false
			scratch.Skip = false
		}
		scratch.Visited.Union(seen)
		*st = *scratch
		return nil
	}
}

// adoptMarker stages a newly found marker: converts its creation time to
// local time and transfers its thumbnail. Any failure here aborts the whole
// refresh with no partial commit.
func (w *Walker) adoptMarker(ctx context.Context, scratch *state.State, illust pixiv.Illust) error {
	w.logger.InfoWithFields("new marker found", map[string]interface{}{
		"id":          uint64(illust.ID),
		"title":       illust.Title,
		"create_date": illust.CreateDate,
	})

	since, err := w.convertDate(illust.CreateDate)
	if err != nil {
		return err
	}

	data, err := w.thumbs.DownloadImage(ctx, illust.ImageURLs.SquareMedium)
	if err != nil {
		return err
	}
	if err := os.WriteFile(w.imagePath, data, 0644); err != nil {
		return errors.New(errors.ErrorTypeState, "failed to write thumbnail: %v", err)
	}

	scratch.MarkerID = illust.ID
	scratch.Since = since
	return nil
}

// convertDate parses the source timestamp and shifts it to local time
func (w *Walker) convertDate(date string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return time.Time{}, errors.New(errors.ErrorTypeParsing, "bad create date %q: %v", date, err)
	}
	return t.In(w.tz), nil
}

// FormatSince renders a marker timestamp as "1/2 15:04" in local time,
// month, day and hour unpadded
func (w *Walker) FormatSince(t time.Time) string {
	t = t.In(w.tz)
	return fmt.Sprintf("%d/%d %d:%02d", t.Month(), t.Day(), t.Hour(), t.Minute())
}

// SinceAgo renders how long ago the marker was created
func (w *Walker) SinceAgo(t time.Time) string {
	return humanize.Time(t)
}
