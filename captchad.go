// Package captchad contains global constants and defaults for the captchad
// challenge service.
package captchad

import "time"

// Version is the current version of captchad.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// BasePrefix is a global prefix for all captchad endpoints. Can be emptied to
// remove the prefix entirely.
var BasePrefix = ""

// APIPrefix is the path prefix of the JSON API.
const APIPrefix = "/api/"

// DefaultChallengeTTL is how long an issued challenge stays answerable.
const DefaultChallengeTTL = 2 * time.Minute

// DefaultSweepInterval is how often the in-memory store reaps expired
// challenges.
const DefaultSweepInterval = time.Minute

// DefaultPassTokenTTL is how long a pass token minted after a successful
// verification is accepted by the siteverify endpoint.
const DefaultPassTokenTTL = 5 * time.Minute

// DefaultSliderTolerance is how many pixels a slider answer may be off by.
const DefaultSliderTolerance = 6

// DefaultGridTiles is the number of tiles in an image-grid challenge (2x3).
const DefaultGridTiles = 6

// DefaultGridTargets is the maximum number of target-category tiles in an
// image-grid challenge.
const DefaultGridTargets = 3
