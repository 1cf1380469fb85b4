package host

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adamancini/unipatch/internal/log"
)

// Files inside each <guid>/ directory of a .unitypackage.
const (
	entryPathname = "pathname"
	entryAsset    = "asset"
	entryMeta     = "asset.meta"
)

// UnityPackageImporter extracts a .unitypackage into a project. The archive
// is a gzip tar of <guid>/pathname, <guid>/asset and <guid>/asset.meta.
type UnityPackageImporter struct {
	projectRoot string
	logger      *slog.Logger
}

// NewUnityPackageImporter creates an importer writing under projectRoot.
func NewUnityPackageImporter(projectRoot string, logger *slog.Logger) *UnityPackageImporter {
	return &UnityPackageImporter{
		projectRoot: projectRoot,
		logger:      log.OrDiscard(logger).With("component", "import"),
	}
}

// Import extracts the package. Entries are staged inside the project root
// first and moved into place once every pathname has been validated.
func (u *UnityPackageImporter) Import(ctx context.Context, artifactPath string) error {
	staging, err := os.MkdirTemp(u.projectRoot, ".unipatch-import-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	guids, err := stage(ctx, artifactPath, staging)
	if err != nil {
		return err
	}

	placements := make([]placement, 0, len(guids))
	for _, guid := range guids {
		p, err := u.resolve(staging, guid)
		if err != nil {
			return err
		}
		placements = append(placements, p)
	}

	// Shorter paths first so folders exist before their contents
	sort.Slice(placements, func(i, j int) bool {
		return placements[i].target < placements[j].target
	})

	for _, p := range placements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.apply(); err != nil {
			return err
		}
	}

	u.logger.Info("imported package", "artifact", artifactPath, "assets", len(placements))
	return nil
}

// stage extracts the archive into staging/<guid>/<file> and returns the guids.
func stage(ctx context.Context, artifactPath, staging string) ([]string, error) {
	f, err := os.Open(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}
	defer func() { _ = gz.Close() }()

	seen := make(map[string]bool)
	var guids []string

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		guid, name, ok := splitEntry(header.Name)
		if !ok {
			continue
		}

		dir := filepath.Join(staging, guid)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create staging entry: %w", err)
		}
		if err := writeFile(filepath.Join(dir, name), tr); err != nil {
			return nil, fmt.Errorf("extract %s: %w", header.Name, err)
		}

		if !seen[guid] {
			seen[guid] = true
			guids = append(guids, guid)
		}
	}

	return guids, nil
}

// splitEntry accepts "<guid>/<file>" (optionally prefixed with "./") for the
// files a package entry may contain.
func splitEntry(name string) (guid, file string, ok bool) {
	name = strings.TrimPrefix(path.Clean(name), "./")
	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] == "" || parts[0] == ".." || parts[0] == "." {
		return "", "", false
	}
	switch parts[1] {
	case entryPathname, entryAsset, entryMeta:
		return parts[0], parts[1], true
	}
	return "", "", false
}

func writeFile(dst string, r io.Reader) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// placement moves one staged entry to its project path.
type placement struct {
	target string // absolute destination
	asset  string // staged asset, empty for folders
	meta   string // staged .meta, may be empty
}

func (u *UnityPackageImporter) resolve(staging, guid string) (placement, error) {
	dir := filepath.Join(staging, guid)

	raw, err := os.ReadFile(filepath.Join(dir, entryPathname))
	if err != nil {
		return placement{}, fmt.Errorf("package entry %s has no pathname: %w", guid, err)
	}

	// Only the first line is the path; newer exporters append extra lines.
	rel := strings.TrimSpace(strings.SplitN(string(raw), "\n", 2)[0])
	target, err := safeJoin(u.projectRoot, rel)
	if err != nil {
		return placement{}, fmt.Errorf("package entry %s: %w", guid, err)
	}

	p := placement{target: target}
	if exists(filepath.Join(dir, entryAsset)) {
		p.asset = filepath.Join(dir, entryAsset)
	}
	if exists(filepath.Join(dir, entryMeta)) {
		p.meta = filepath.Join(dir, entryMeta)
	}
	return p, nil
}

func (p placement) apply() error {
	if p.asset == "" {
		if err := os.MkdirAll(p.target, 0o755); err != nil {
			return fmt.Errorf("create folder %s: %w", p.target, err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(p.target), 0o755); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", p.target, err)
		}
		if err := os.Rename(p.asset, p.target); err != nil {
			return fmt.Errorf("place %s: %w", p.target, err)
		}
	}

	if p.meta != "" {
		if err := os.Rename(p.meta, p.target+".meta"); err != nil {
			return fmt.Errorf("place %s.meta: %w", p.target, err)
		}
	}
	return nil
}

// safeJoin joins a package-relative path onto root, rejecting absolute paths
// and paths that escape root.
func safeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty pathname")
	}

	rel = filepath.FromSlash(rel)
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("absolute path not allowed: %s", rel)
	}

	cleanRoot := filepath.Clean(root)
	target := filepath.Join(cleanRoot, rel)
	if !strings.HasPrefix(target, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes project: %s", rel)
	}
	return target, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NopImporter leaves the downloaded package for the host to import itself.
type NopImporter struct{}

// Import does nothing.
func (NopImporter) Import(ctx context.Context, artifactPath string) error { return nil }
