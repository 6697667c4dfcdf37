// Package subtitles acquires, converts, and registers subtitle files
// for downloaded movies.
package subtitles

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/streamarr/streamarr/internal/contentid"
	"github.com/streamarr/streamarr/internal/fileutil"
	"github.com/streamarr/streamarr/internal/library"
	"github.com/streamarr/streamarr/internal/scanner"
	"github.com/streamarr/streamarr/internal/settings"
	"github.com/streamarr/streamarr/internal/subtitles/opensubtitles"
	"github.com/streamarr/streamarr/pkg/vtt"
)

// VTTFolder is the working directory for subtitle files, created inside
// each content folder. Downloads land here, get converted to WebVTT
// here, and are served from here.
const VTTFolder = "vtt_subtitles"

// Searcher is the provider surface the service needs.
type Searcher interface {
	ByFingerprint(ctx context.Context, size int64, hash, imdbID, lang string) ([]opensubtitles.Result, error)
	ByQuery(ctx context.Context, query, imdbID, lang string) ([]opensubtitles.Result, error)
	ByIMDB(ctx context.Context, imdbID, lang string) ([]opensubtitles.Result, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// candidate is one subtitle picked for download, carrying the synthetic
// name it will be stored under.
type candidate struct {
	opensubtitles.Result
	hiddenName string // {lang}{rank}.srt
	language   string
}

// Service fetches subtitles tier by tier and registers them against
// content records. Languages and the per-language limit come from the
// settings overlay at fetch time, falling back to the static defaults.
type Service struct {
	store     *library.Store
	client    Searcher
	settings  *settings.Store
	languages []string
	limit     int
	log       *slog.Logger
}

// NewService creates a subtitle service. languages and limit are the
// static defaults used when no settings override exists.
func NewService(store *library.Store, client Searcher, st *settings.Store, languages []string, limit int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	if limit <= 0 {
		limit = 5
	}
	return &Service{
		store:     store,
		client:    client,
		settings:  st,
		languages: languages,
		limit:     limit,
		log:       log.With("component", "subtitles"),
	}
}

// activeLanguages resolves the language list for one fetch.
func (s *Service) activeLanguages() []string {
	if s.settings != nil {
		if stored := s.settings.String(settings.KeySubtitleLanguages, ""); stored != "" {
			var langs []string
			for _, l := range strings.Split(stored, ",") {
				if l = strings.TrimSpace(l); l != "" {
					langs = append(langs, l)
				}
			}
			if len(langs) > 0 {
				return langs
			}
		}
	}
	return s.languages
}

// activeLimit resolves the per-language limit for one fetch.
func (s *Service) activeLimit() int {
	if s.settings != nil {
		if n := s.settings.Int(settings.KeySubtitleLimit, s.limit); n > 0 {
			return n
		}
	}
	return s.limit
}

// Fetch acquires subtitles for a content item. For each configured
// language the provider is queried tier by tier (fingerprint, release
// name, IMDB id); the first tier that alone yields at least the limit
// wins, anything less falls through to the next. Downloads land in the
// working subfolder, get converted to WebVTT, and are registered
// against the content, skipping paths already on record. Per-candidate
// trouble is logged and skipped; only a missing content file aborts.
func (s *Service) Fetch(ctx context.Context, content *library.Content, imdbID string, deleteOriginals bool) error {
	folder, err := contentFolder(content)
	if err != nil {
		return err
	}

	subDir := filepath.Join(folder, VTTFolder)
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		return fmt.Errorf("create subtitle folder: %w", err)
	}

	languages := s.activeLanguages()
	limit := s.activeLimit()

	if err := s.preserveExisting(folder, subDir, limit); err != nil {
		s.log.Warn("failed to preserve bundled subtitles", "content_id", content.ID, "error", err)
	}

	var picked []candidate
	for _, lang := range languages {
		found := s.search(ctx, content, imdbID, lang, limit)
		if len(found) == 0 {
			s.log.Warn("no subtitles found", "content_id", content.ID, "lang", lang)
			continue
		}
		picked = append(picked, found...)
	}

	for _, c := range picked {
		s.download(ctx, c, subDir)
	}

	s.convertFolder(subDir)

	if deleteOriginals {
		if err := s.removeSources(subDir); err != nil {
			return err
		}
	}

	if err := s.registerFolder(content, folder, subDir, langMap(picked), languages[0]); err != nil {
		return err
	}

	if err := fileutil.SetServable(subDir); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	return nil
}

// contentFolder locates the folder subtitles belong in. The stored file
// path must still exist; a record pointing at nothing is an error to
// surface, not to paper over.
func contentFolder(content *library.Content) (string, error) {
	if content.FullPath == "" {
		return "", fmt.Errorf("content %d has no file path", content.ID)
	}
	info, err := os.Stat(content.FullPath)
	if err != nil {
		return "", fmt.Errorf("content %d file: %w", content.ID, err)
	}
	if info.IsDir() {
		return content.FullPath, nil
	}
	return filepath.Dir(content.FullPath), nil
}

// search walks the tiers for one language. A tier only wins when it
// alone returns at least the limit of usable results; partial tiers are
// never topped up from the next one.
func (s *Service) search(ctx context.Context, content *library.Content, imdbID, lang string, limit int) []candidate {
	tiers := []func() ([]opensubtitles.Result, error){
		func() ([]opensubtitles.Result, error) {
			if content.FullPath == "" {
				return nil, nil
			}
			info, err := os.Stat(content.FullPath)
			if err != nil {
				return nil, nil
			}
			fp, err := contentid.Fingerprint(content.FullPath)
			if err != nil {
				return nil, nil
			}
			return s.client.ByFingerprint(ctx, info.Size(), fp, imdbID, lang)
		},
		func() ([]opensubtitles.Result, error) {
			name := content.SourceFileName
			if name == "" {
				name = content.FileName
			}
			if name == "" {
				return nil, nil
			}
			return s.client.ByQuery(ctx, name, imdbID, lang)
		},
		func() ([]opensubtitles.Result, error) {
			if imdbID == "" {
				return nil, nil
			}
			return s.client.ByIMDB(ctx, imdbID, lang)
		},
	}

	for tier, query := range tiers {
		results, err := query()
		if err != nil {
			s.log.Warn("subtitle search failed", "content_id", content.ID, "tier", tier, "error", err)
			continue
		}
		usable := filterSRT(results)
		if len(usable) < limit {
			continue
		}
		if tier == 1 {
			name := content.SourceFileName
			if name == "" {
				name = content.FileName
			}
			usable = bySimilarity(usable, name)
		} else {
			usable = byRating(usable)
		}
		usable = usable[:limit]

		s.log.Debug("subtitle tier hit", "content_id", content.ID, "lang", lang, "tier", tier, "count", len(usable))

		picked := make([]candidate, len(usable))
		for i, r := range usable {
			language := r.SubLanguageID
			if language == "" {
				language = lang
			}
			picked[i] = candidate{
				Result:     r,
				hiddenName: fmt.Sprintf("%s%d.srt", language, i+1),
				language:   language,
			}
		}
		return picked
	}
	return nil
}

// download fetches one candidate into the working subfolder. Failures
// never abort the batch.
func (s *Service) download(ctx context.Context, c candidate, subDir string) {
	data, err := s.client.Download(ctx, c.SubDownloadLink)
	if err != nil {
		s.log.Warn("subtitle download failed", "file", c.SubFileName, "error", err)
		return
	}
	raw, err := gunzip(data)
	if err != nil {
		s.log.Warn("subtitle decompress failed", "file", c.SubFileName, "error", err)
		return
	}
	text := decodeText(raw, c.SubEncoding)

	path := filepath.Join(subDir, c.hiddenName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		s.log.Warn("subtitle write failed", "path", path, "error", err)
		return
	}
	s.log.Info("subtitle saved", "path", path, "source", c.SubFileName)
}

// preserveExisting copies subtitle files that arrived inside the
// download itself into the working subfolder as orgN.srt, capped at the
// limit, leaving the originals in place.
func (s *Service) preserveExisting(folder, subDir string, limit int) error {
	found, err := scanner.Scan(folder, scanner.SubtitleExtensions, []string{VTTFolder}, scanner.KindSubtitle)
	if err != nil {
		return fmt.Errorf("scan subtitles: %w", err)
	}

	for i, path := range scanner.Sorted(found) {
		if i >= limit {
			break
		}
		target := filepath.Join(subDir, "org"+strconv.Itoa(i+1)+filepath.Ext(path))
		if _, err := fileutil.CopyFile(path, target); err != nil {
			return fmt.Errorf("preserve subtitle: %w", err)
		}
		s.log.Info("preserved bundled subtitle", "source", path, "target", target)
	}
	return nil
}

// convertFolder writes a WebVTT rendition beside every SRT file in the
// working subfolder. Conversion trouble for one file never stops the
// rest.
func (s *Service) convertFolder(subDir string) {
	entries, err := os.ReadDir(subDir)
	if err != nil {
		s.log.Warn("failed to read subtitle folder", "folder", subDir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".srt") {
			continue
		}
		src := filepath.Join(subDir, entry.Name())
		if _, err := vtt.ConvertFile(src); err != nil {
			s.log.Warn("subtitle conversion failed", "path", src, "error", err)
		}
	}
}

// removeSources deletes the SRT sources after conversion, recording
// each name in the folder manifest first.
func (s *Service) removeSources(subDir string) error {
	entries, err := os.ReadDir(subDir)
	if err != nil {
		return fmt.Errorf("read subtitle folder: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".srt") {
			continue
		}
		if err := fileutil.RemoveWithManifest(filepath.Join(subDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// registerFolder records every WebVTT file in the working subfolder
// against the content, skipping paths already on record.
func (s *Service) registerFolder(content *library.Content, folder, subDir string, langs map[string]string, primary string) error {
	entries, err := os.ReadDir(subDir)
	if err != nil {
		return fmt.Errorf("read subtitle folder: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".vtt") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(subDir, name)
		exists, err := s.store.HasSubtitlePath(content.ID, path)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		sub := &library.Subtitle{
			FullPath:     path,
			RelativePath: filepath.Join(filepath.Base(folder), VTTFolder, name),
			FileName:     name,
			Suffix:       strings.ToLower(filepath.Ext(name)),
			LangThree:    s.language(name, langs, primary),
		}
		if err := s.store.AddSubtitle(sub); err != nil {
			return fmt.Errorf("register subtitle: %w", err)
		}
		if err := s.store.LinkSubtitle(content.ID, sub.ID); err != nil {
			return err
		}
	}
	return nil
}

// language maps a produced file name to its language code, trying an
// exact match against the candidates' assigned and source names first
// and a fuzzy match second. Unmatched files get the primary language.
func (s *Service) language(name string, langs map[string]string, primary string) string {
	if lang, ok := langs[name]; ok {
		return lang
	}

	bestScore := float32(0.8)
	best := ""
	for known, lang := range langs {
		score := edlib.JaroWinklerSimilarity(normalizeTitle(name), normalizeTitle(known))
		if score > bestScore {
			bestScore = score
			best = lang
		}
	}
	if best != "" {
		return best
	}
	return primary
}

// Reacquire drops the working subfolder and every registered subtitle
// for the content, then fetches a fresh set.
func (s *Service) Reacquire(ctx context.Context, content *library.Content, imdbID string, deleteOriginals bool) error {
	folder, err := contentFolder(content)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(folder, VTTFolder)); err != nil {
		return fmt.Errorf("remove subtitle folder: %w", err)
	}
	if err := s.store.DeleteContentSubtitles(content.ID); err != nil {
		return err
	}
	return s.Fetch(ctx, content, imdbID, deleteOriginals)
}

// langMap indexes candidate languages by the WebVTT names their files
// could end up under: the assigned hidden name and the provider's own
// file name, extension swapped.
func langMap(picked []candidate) map[string]string {
	out := make(map[string]string, 2*len(picked))
	for _, c := range picked {
		out[swapExt(c.hiddenName)] = c.language
		if c.SubFileName != "" {
			out[swapExt(c.SubFileName)] = c.language
		}
	}
	return out
}

func swapExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".vtt"
}

func filterSRT(results []opensubtitles.Result) []opensubtitles.Result {
	var out []opensubtitles.Result
	for _, r := range results {
		if strings.EqualFold(r.SubFormat, "srt") && r.SubDownloadLink != "" {
			out = append(out, r)
		}
	}
	return out
}

func byRating(results []opensubtitles.Result) []opensubtitles.Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rating() > results[j].Rating()
	})
	return results
}

// bySimilarity orders free-text results by how closely their file name
// matches the release name, falling back to rating on equal scores.
func bySimilarity(results []opensubtitles.Result, release string) []opensubtitles.Result {
	normalized := normalizeTitle(release)
	score := func(r opensubtitles.Result) float64 {
		return float64(edlib.JaroWinklerSimilarity(normalized, normalizeTitle(r.SubFileName)))
	}
	sort.SliceStable(results, func(i, j int) bool {
		si, sj := score(results[i]), score(results[j])
		if si != sj {
			return si > sj
		}
		return results[i].Rating() > results[j].Rating()
	})
	return results
}

func normalizeTitle(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ToLower(name)
	return strings.Map(func(r rune) rune {
		if r == '.' || r == '_' || r == '-' {
			return ' '
		}
		return r
	}, name)
}
