package localdir

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/hireflow/internal/source"
)

// ManifestFileName is the optional JSONL manifest describing the files in a directory.
const ManifestFileName = "manifest.jsonl"

// ManifestItem represents a line in manifest.jsonl.
type ManifestItem struct {
	Filename      string `json:"filename"`
	CandidateName string `json:"candidate_name"`
	Email         string `json:"email"`
	JobRole       string `json:"job_role"`
	CoverLetter   string `json:"cover_letter"`
}

// Adapter implements the Source interface for a local directory of resumes.
type Adapter struct {
	basePath       string
	defaultJobRole string
	items          []source.ResumeFile
	loaded         bool
}

// NewAdapter creates a new local directory adapter.
// Parameters:
//   - basePath: directory containing resume files.
//   - defaultJobRole: role applied to files whose manifest entry has none.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(basePath, defaultJobRole string) *Adapter {
	return &Adapter{basePath: basePath, defaultJobRole: defaultJobRole}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "localdir:" + filepath.Base(a.basePath)
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Local directory (%s)", a.basePath)
}

// FetchBatch fetches a batch of resume files, in file name order.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.ResumeFile, string, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return nil, "", fmt.Errorf("failed to load resume files: %w", err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", err)
		}
	}

	if startIndex >= len(a.items) {
		return []source.ResumeFile{}, "", nil
	}

	endIndex := startIndex + limit
	if limit <= 0 || endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}
	return a.items[startIndex:endIndex], nextCursor, nil
}

// GetTotalCount returns the number of resume files in the directory.
func (a *Adapter) GetTotalCount() (int, error) {
	if !a.loaded {
		if err := a.loadItems(); err != nil {
			return 0, err
		}
		a.loaded = true
	}
	return len(a.items), nil
}

func (a *Adapter) loadItems() error {
	info, err := os.Stat(a.basePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", a.basePath)
	}

	manifest, err := a.readManifest()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(a.basePath)
	if err != nil {
		return err
	}

	a.items = []source.ResumeFile{}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == ManifestFileName || !source.SupportedExtension(entry.Name()) {
			continue
		}

		item := source.ResumeFile{
			SourceID:  entry.Name(),
			Name:      entry.Name(),
			MIMEType:  source.DetectMIMEType(entry.Name()),
			LocalPath: filepath.Join(a.basePath, entry.Name()),
			JobRole:   a.defaultJobRole,
		}
		if m, ok := manifest[entry.Name()]; ok {
			item.CandidateName = m.CandidateName
			item.Email = m.Email
			item.CoverLetter = m.CoverLetter
			if m.JobRole != "" {
				item.JobRole = m.JobRole
			}
		}
		if item.CandidateName == "" {
			item.CandidateName = candidateNameFromFile(entry.Name())
		}
		a.items = append(a.items, item)
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].Name < a.items[j].Name
	})
	return nil
}

// readManifest loads manifest.jsonl if present. Malformed lines are skipped.
func (a *Adapter) readManifest() (map[string]ManifestItem, error) {
	items := map[string]ManifestItem{}

	file, err := os.Open(filepath.Join(a.basePath, ManifestFileName))
	if os.IsNotExist(err) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var item ManifestItem
		if err := json.Unmarshal([]byte(line), &item); err != nil || item.Filename == "" {
			continue
		}
		items[item.Filename] = item
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return items, nil
}

// candidateNameFromFile turns "jane_doe-cv.pdf" into "Jane Doe Cv".
func candidateNameFromFile(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
	}
	return strings.Join(fields, " ")
}
