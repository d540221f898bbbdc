package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"omniwizz/internal/domain"
	"omniwizz/internal/providers/image"
	"omniwizz/internal/providers/vision"
	"omniwizz/internal/storage"
	"omniwizz/internal/textparse"
)

const maxSlugLength = 48

// ImagesResult lists the entities found in the image and the files written
// for them, as keys relative to the run directory.
type ImagesResult struct {
	Run      string   `json:"folder"`
	Entities []string `json:"entities"`
	Images   []string `json:"images"`
	Outcome
}

// Images runs the images flavor in a new run directory.
func (p *Pipeline) Images(ctx context.Context, in Input) (*ImagesResult, error) {
	run, err := p.prepareRun(ctx, in)
	if err != nil {
		return nil, err
	}
	return p.runImages(ctx, run, in)
}

func (p *Pipeline) runImages(ctx context.Context, run *storage.Run, in Input) (*ImagesResult, error) {
	tr := newTracker(p.logger, run.Name, domain.FlavorImages)
	res := &ImagesResult{Run: run.Name, Entities: []string{}, Images: []string{}}

	if err := tr.to(domain.RunStateGeneratingText); err != nil {
		return res, tr.fail(err)
	}
	inst := vision.Instruction{Task: vision.TaskEntities, Language: in.Language, Image: in.Image}
	text, err := p.generateText(ctx, tr, inst, &res.Outcome)
	if err != nil {
		return res, tr.fail(err)
	}

	if err := tr.to(domain.RunStatePostprocessing); err != nil {
		return res, tr.fail(err)
	}
	entities := textparse.ParseEntities(text)
	if len(entities) == 0 {
		text, err = p.standInText(ctx, tr, inst, &res.Outcome)
		if err != nil {
			return res, tr.fail(err)
		}
		entities = textparse.ParseEntities(text)
	}
	if len(entities) > p.maxEntities {
		entities = entities[:p.maxEntities]
	}
	if len(entities) > 0 {
		res.Entities = entities
	}
	if _, err := run.WriteJSON(ctx, storage.EntitiesFile, res.Entities); err != nil {
		return res, tr.fail(fmt.Errorf("pipeline: %w", err))
	}

	if err := tr.to(domain.RunStateInvoking); err != nil {
		return res, tr.fail(err)
	}
	found := p.fetchImages(ctx, run.Name, p.images, res.Entities, in.Language)
	if countAssets(found) == 0 && len(res.Entities) > 0 {
		if !p.fallback.Enabled {
			return res, tr.fail(fmt.Errorf("pipeline: %s returned no images: %w", p.images.Name(), domain.ErrProviderFailure))
		}
		p.degrade(tr, &res.Outcome, fmt.Sprintf("%s returned no images", p.images.Name()))
		found = p.fetchImages(ctx, run.Name, p.standIns.Images, res.Entities, in.Language)
		if countAssets(found) == 0 {
			return res, tr.fail(fmt.Errorf("pipeline: stand-in images: %w", domain.ErrProviderFailure))
		}
	}

	if err := tr.to(domain.RunStatePersisting); err != nil {
		return res, tr.fail(err)
	}
	used := map[string]bool{}
	for i, assets := range found {
		slug := Slug(res.Entities[i])
		if slug == "" {
			slug = fmt.Sprintf("entity%d", i+1)
		}
		slug = uniqueSlug(used, slug, i+1)
		used[slug] = true
		for n, asset := range assets {
			key := fmt.Sprintf("%s/%s_%d.%s", storage.ImagesDir, slug, n+1, asset.Ext())
			written, err := run.Write(ctx, key, asset.Data)
			if err != nil {
				return res, tr.fail(fmt.Errorf("pipeline: %w", err))
			}
			res.Images = append(res.Images, written)
		}
	}
	return res, tr.to(domain.RunStateDone)
}

// uniqueSlug returns slug, or slug_n with the smallest n >= next that is
// not already used.
func uniqueSlug(used map[string]bool, slug string, next int) string {
	if !used[slug] {
		return slug
	}
	for n := next; ; n++ {
		candidate := fmt.Sprintf("%s_%d", slug, n)
		if !used[candidate] {
			return candidate
		}
	}
}

// fetchImages queries src for every entity concurrently. The result is
// indexed like entities; failed lookups leave an empty slot.
func (p *Pipeline) fetchImages(ctx context.Context, runName string, src image.Source, entities []string, lang domain.Language) [][]image.Asset {
	found := make([][]image.Asset, len(entities))
	var g errgroup.Group
	g.SetLimit(p.imageConcurrency)
	for i, entity := range entities {
		g.Go(func() error {
			assets, err := src.Fetch(ctx, image.Query{
				Entity:   p.decorate(entity),
				Limit:    p.imagesPerEntity,
				Language: lang,
			})
			if err != nil {
				p.logger.Warn().
					Err(err).
					Str("run", runName).
					Str("source", src.Name()).
					Str("entity", entity).
					Msg("image lookup failed")
			}
			if len(assets) > p.imagesPerEntity {
				assets = assets[:p.imagesPerEntity]
			}
			found[i] = assets
			return nil
		})
	}
	_ = g.Wait()
	return found
}

func (p *Pipeline) decorate(entity string) string {
	entity = strings.TrimSpace(entity)
	suffix := strings.TrimSpace(p.imageSuffix)
	if suffix == "" || strings.HasSuffix(strings.ToLower(entity), strings.ToLower(suffix)) {
		return entity
	}
	return entity + p.imageSuffix
}

func countAssets(found [][]image.Asset) int {
	n := 0
	for _, assets := range found {
		n += len(assets)
	}
	return n
}

// Slug converts an entity phrase into a lower-case ASCII file name stem.
// Accents are folded; other characters collapse to single underscores.
func Slug(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if len(out) > maxSlugLength {
		out = strings.TrimRight(out[:maxSlugLength], "_")
	}
	return out
}
