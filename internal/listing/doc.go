// Package listing serves archive folder listings from memory.
//
// [Cache] keeps each folder's items for a fixed time-to-live and treats older entries as absent.
// [Browser] joins the cache with a [Fetcher] and [Filter] narrows a listing by fuzzy name match.
package listing
