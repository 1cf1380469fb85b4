package host

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type pkgEntry struct {
	guid     string
	pathname string
	asset    string // empty means folder
	meta     string
}

func writePackage(t *testing.T, entries []pkgEntry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "SDK.unitypackage")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	add := func(name, body string) {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}

	for _, e := range entries {
		if err := tw.WriteHeader(&tar.Header{Name: e.guid + "/", Mode: 0o755, Typeflag: tar.TypeDir}); err != nil {
			t.Fatal(err)
		}
		add(e.guid+"/pathname", e.pathname)
		if e.asset != "" {
			add(e.guid+"/asset", e.asset)
		}
		if e.meta != "" {
			add(e.guid+"/asset.meta", e.meta)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestUnityPackageImporter_Import(t *testing.T) {
	root := t.TempDir()
	pkg := writePackage(t, []pkgEntry{
		{guid: "a1", pathname: "Assets/Plugins/SDK", meta: "folderAsset: yes"},
		{guid: "b2", pathname: "Assets/Plugins/SDK/Client.cs\n00", asset: "class Client {}", meta: "guid: b2"},
		{guid: "c3", pathname: "Assets/Plugins/SDK/Editor/Menu.cs", asset: "class Menu {}"},
	})

	imp := NewUnityPackageImporter(root, nil)
	if err := imp.Import(context.Background(), pkg); err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	sdk := filepath.Join(root, "Assets", "Plugins", "SDK")
	if info, err := os.Stat(sdk); err != nil || !info.IsDir() {
		t.Fatalf("folder entry not created: %v", err)
	}
	if got := readFile(t, sdk+".meta"); got != "folderAsset: yes" {
		t.Errorf("folder meta = %q", got)
	}
	if got := readFile(t, filepath.Join(sdk, "Client.cs")); got != "class Client {}" {
		t.Errorf("Client.cs = %q", got)
	}
	if got := readFile(t, filepath.Join(sdk, "Client.cs.meta")); got != "guid: b2" {
		t.Errorf("Client.cs.meta = %q", got)
	}
	if got := readFile(t, filepath.Join(sdk, "Editor", "Menu.cs")); got != "class Menu {}" {
		t.Errorf("Menu.cs = %q", got)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".unipatch-import-") {
			t.Errorf("staging dir %s was not removed", e.Name())
		}
	}
}

func TestUnityPackageImporter_RejectsTraversal(t *testing.T) {
	tests := []struct {
		name     string
		pathname string
	}{
		{"parent", "../outside.cs"},
		{"nested parent", "Assets/../../outside.cs"},
		{"absolute", "/tmp/outside.cs"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			pkg := writePackage(t, []pkgEntry{
				{guid: "ok", pathname: "Assets/Safe.cs", asset: "safe"},
				{guid: "bad", pathname: tt.pathname, asset: "evil"},
			})

			err := NewUnityPackageImporter(root, nil).Import(context.Background(), pkg)
			if err == nil {
				t.Fatal("expected error")
			}
			// Validation happens before anything is placed.
			if _, err := os.Stat(filepath.Join(root, "Assets", "Safe.cs")); !os.IsNotExist(err) {
				t.Error("no asset should be placed when any pathname is invalid")
			}
		})
	}
}

func TestUnityPackageImporter_MissingPathname(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "bad.unitypackage")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	body := "orphan"
	if err := tw.WriteHeader(&tar.Header{Name: "x1/asset", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	if err := NewUnityPackageImporter(root, nil).Import(context.Background(), path); err == nil {
		t.Error("expected error for entry without pathname")
	}
}

func TestUnityPackageImporter_NotGzip(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "plain.unitypackage")
	if err := os.WriteFile(path, []byte("not a package"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewUnityPackageImporter(root, nil).Import(context.Background(), path); err == nil {
		t.Error("expected error for non-gzip input")
	}
}

func TestSplitEntry(t *testing.T) {
	tests := []struct {
		in       string
		wantGUID string
		wantFile string
		wantOK   bool
	}{
		{"abc/pathname", "abc", "pathname", true},
		{"./abc/asset", "abc", "asset", true},
		{"abc/asset.meta", "abc", "asset.meta", true},
		{"abc/preview.png", "", "", false},
		{"abc", "", "", false},
		{"../asset", "", "", false},
		{"a/b/asset", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			guid, file, ok := splitEntry(tt.in)
			if guid != tt.wantGUID || file != tt.wantFile || ok != tt.wantOK {
				t.Errorf("splitEntry(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.in, guid, file, ok, tt.wantGUID, tt.wantFile, tt.wantOK)
			}
		})
	}
}

func TestNopImporter(t *testing.T) {
	if err := (NopImporter{}).Import(context.Background(), "x"); err != nil {
		t.Errorf("Import() error: %v", err)
	}
}
