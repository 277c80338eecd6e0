// Package grid implements the image-grid challenge: pick every tile that
// shows the named category.
package grid

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/uvensys/captchad/lib/assets"
	"github.com/uvensys/captchad/lib/challenge"
)

func init() {
	challenge.Register(challenge.TypeGrid, &Impl{})
}

const maxColumns = 3

type Impl struct{}

// DisplayName turns a category directory name into the text shown to users.
func DisplayName(category string) string {
	return strings.ReplaceAll(category, "_", " ")
}

func TileID(pos int) string {
	return fmt.Sprintf("t%d", pos)
}

func (i *Impl) Issue(lg *slog.Logger, in *challenge.IssueInput) (*challenge.Issued, error) {
	lib := in.Assets.Grid
	categories := lib.Categories()
	if len(categories) == 0 {
		return nil, challenge.NewError("issue", challenge.TypeGrid, "no grid images available", challenge.ErrNoAssetsAvailable)
	}

	category := categories[in.Rand.IntN(len(categories))]
	pool := lib[category]
	if len(pool) == 0 {
		return nil, challenge.NewError("issue", challenge.TypeGrid, "no grid images available", fmt.Errorf("%w: %s", challenge.ErrAssetPoolEmptyForCategory, category))
	}

	wantTargets := in.Config.Grid.Targets
	wantDistractors := in.Config.Grid.Tiles - wantTargets

	shuffled := slices.Clone(pool)
	in.Rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	nTargets := min(wantTargets, len(shuffled))
	targets, leftover := shuffled[:nTargets], shuffled[nTargets:]

	var others []assets.Tile
	for _, name := range categories {
		if name != category {
			others = append(others, lib[name]...)
		}
	}
	in.Rand.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	distractors := others[:min(wantDistractors, len(others))]

	// Not enough other categories: pad with unused tiles of the target
	// category. These count as targets when the solution is computed.
	if len(distractors) < wantDistractors {
		in.Rand.Shuffle(len(leftover), func(i, j int) { leftover[i], leftover[j] = leftover[j], leftover[i] })
		need := min(wantDistractors-len(distractors), len(leftover))
		distractors = append(slices.Clone(distractors), leftover[:need]...)
	}

	picked := slices.Concat(targets, distractors)
	in.Rand.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })

	tiles := make([]challenge.Tile, len(picked))
	var solution []string
	for pos, tile := range picked {
		id := TileID(pos)
		tiles[pos] = challenge.Tile{
			ID:       id,
			Image:    tile.PNG,
			MimeType: "image/png",
		}
		if tile.Category == category {
			solution = append(solution, id)
		}
	}

	name := DisplayName(category)
	lg.Debug("issued grid challenge", "category", category, "tiles", len(tiles), "targets", len(solution))

	return &challenge.Issued{
		Payload: challenge.GridPayload{
			Tiles:        tiles,
			Columns:      min(maxColumns, len(tiles)),
			Category:     name,
			Instructions: in.Localizer.TData("instructions_grid", map[string]any{"Category": name}),
		},
		Solution: strings.Join(solution, ","),
	}, nil
}

// ParseSelection splits a comma separated id list into a set. Whitespace
// around ids and empty entries are ignored.
func ParseSelection(s string) map[string]struct{} {
	result := map[string]struct{}{}
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		result[id] = struct{}{}
	}
	return result
}

func (i *Impl) Validate(lg *slog.Logger, in *challenge.ValidateInput) bool {
	want := ParseSelection(in.Challenge.Solution)
	got := ParseSelection(in.Answer)

	if len(want) != len(got) {
		return false
	}

	for id := range want {
		if _, ok := got[id]; !ok {
			return false
		}
	}

	return true
}
