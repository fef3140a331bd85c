package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/craftops/fleet/internal/external"
	"github.com/craftops/fleet/internal/repository"
)

type fakeCatalog struct {
	latest  map[string]string // project ID -> latest release
	lookups int
}

func (f *fakeCatalog) GetProject(slugOrID string) (*external.CatalogProject, error) {
	f.lookups++
	return &external.CatalogProject{ProjectID: slugOrID, Slug: slugOrID, ProjectType: "plugin"}, nil
}

func (f *fakeCatalog) LatestCompatibleVersion(projectID, gameVersion string) (*external.CatalogVersion, error) {
	version, ok := f.latest[projectID]
	if !ok {
		return nil, nil
	}
	return &external.CatalogVersion{
		ProjectID:     projectID,
		VersionNumber: version,
		VersionType:   "release",
		Files: []external.CatalogFile{
			{URL: "https://cdn.example/" + projectID + ".jar", Filename: projectID + "-" + version + ".jar", Primary: true},
		},
	}, nil
}

func (f *fakeCatalog) DownloadFile(file *external.CatalogFile, targetDir string) (string, error) {
	path := filepath.Join(targetDir, file.Filename)
	return path, os.WriteFile(path, []byte("jar"), 0644)
}

func newPluginFixture(t *testing.T, catalog *fakeCatalog) (*PluginUpdateService, *repository.StateStore, *repository.ServerRepository, string) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewServerRepository(db)
	states := repository.NewStateStore(db)
	serversDir := t.TempDir()
	svc := NewPluginUpdateService(repo, states, catalog, serversDir, time.Hour)
	return svc, states, repo, serversDir
}

func writeJar(t *testing.T, serversDir, serverID, name string) {
	t.Helper()
	dir := filepath.Join(serversDir, serverID, "plugins")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("jar"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckServerFindsOutdatedPlugin(t *testing.T) {
	catalog := &fakeCatalog{latest: map[string]string{"worldedit": "7.3.0"}}
	svc, _, repo, serversDir := newPluginFixture(t, catalog)
	server := seedServer(t, repo, "srv-1", "1.21")
	writeJar(t, serversDir, "srv-1", "WorldEdit-7.2.0.jar")

	findings, err := svc.CheckServer(server, false)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.InstalledVersion != "7.2.0" || f.LatestVersion != "7.3.0" {
		t.Errorf("unexpected finding: %+v", f)
	}
}

func TestCheckServerUpToDatePlugin(t *testing.T) {
	catalog := &fakeCatalog{latest: map[string]string{"worldedit": "7.2.0"}}
	svc, states, repo, serversDir := newPluginFixture(t, catalog)
	server := seedServer(t, repo, "srv-1", "1.21")
	writeJar(t, serversDir, "srv-1", "WorldEdit-7.2.0.jar")

	findings, err := svc.CheckServer(server, false)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("got %d findings, want 0", len(findings))
	}

	// The check time is recorded even when nothing is outdated.
	state, err := states.GetPluginUpdateState("srv-1")
	if err != nil {
		t.Fatal(err)
	}
	if state.LastCheckTime == nil {
		t.Error("LastCheckTime not persisted on clean check")
	}
}

func TestCheckServerNoPluginsDirectory(t *testing.T) {
	catalog := &fakeCatalog{}
	svc, states, repo, _ := newPluginFixture(t, catalog)
	server := seedServer(t, repo, "srv-1", "1.21")

	findings, err := svc.CheckServer(server, false)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("got %d findings, want 0", len(findings))
	}
	if catalog.lookups != 0 {
		t.Error("catalog queried for a server without plugins")
	}

	state, _ := states.GetPluginUpdateState("srv-1")
	if state.LastCheckTime == nil {
		t.Error("LastCheckTime not persisted for empty server")
	}
}

func TestCheckServerAutoApplyDownloads(t *testing.T) {
	catalog := &fakeCatalog{latest: map[string]string{"worldedit": "7.3.0"}}
	svc, _, repo, serversDir := newPluginFixture(t, catalog)
	server := seedServer(t, repo, "srv-1", "1.21")
	writeJar(t, serversDir, "srv-1", "WorldEdit-7.2.0.jar")

	if _, err := svc.CheckServer(server, true); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	pluginsDir := filepath.Join(serversDir, "srv-1", "plugins")
	if _, err := os.Stat(filepath.Join(pluginsDir, "worldedit-7.3.0.jar")); err != nil {
		t.Errorf("new jar not downloaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(pluginsDir, "WorldEdit-7.2.0.jar")); !os.IsNotExist(err) {
		t.Error("old jar not removed after auto-apply")
	}
}

func TestParseJarName(t *testing.T) {
	cases := []struct {
		filename string
		name     string
		version  string
		ok       bool
	}{
		{"WorldEdit-7.2.0.jar", "WorldEdit", "7.2.0", true},
		{"simple-voice-chat-2.5.1.jar", "simple-voice-chat", "2.5.1", true},
		{"EssentialsX-2.20.jar", "EssentialsX", "2.20", true},
		{"Vault.jar", "", "", false},
		{"notajar-1.0.txt", "", "", false},
		{"-1.0.jar", "", "", false},
	}
	for _, tc := range cases {
		name, version, ok := ParseJarName(tc.filename)
		if ok != tc.ok || name != tc.name || version != tc.version {
			t.Errorf("ParseJarName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.filename, name, version, ok, tc.name, tc.version, tc.ok)
		}
	}
}
