package jobs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"callscreen/internal/errors"
	"callscreen/internal/types"
)

const sampleCatalog = `
[[jobs]]
id = "backend-go"
title = "Backend Engineer"
location = "Remote"
jobType = "Full-time"
experienceLevel = "Mid"
description = """
Build and operate Go services.
"""
requirements = ["Go", "PostgreSQL"]
deadline = "2026-12-01"

[jobs.spec]
education = "bachelor"
experience = 3
skills = ["go", "sql", "docker"]

[[jobs]]
id = "ml-research"
title = "ML Researcher"

[jobs.spec]
education = "phd"
experience = 5
skills = ["python"]
`

type memorySaver struct {
	mu   sync.Mutex
	jobs map[string]*types.Job
}

func (m *memorySaver) SaveJob(_ context.Context, job *types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = make(map[string]*types.Job)
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *memorySaver) get(id string) *types.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func TestParse(t *testing.T) {
	jobs, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	backend := jobs[0]
	if backend.Title != "Backend Engineer" || backend.Description != "Build and operate Go services." {
		t.Errorf("unexpected job %+v", backend)
	}
	if backend.Spec.Education != types.EducationBachelor || backend.Spec.Experience != 3 {
		t.Errorf("unexpected spec %+v", backend.Spec)
	}
	if len(backend.Spec.Skills) != 3 || len(backend.Requirements) != 2 {
		t.Errorf("unexpected lists %+v", backend)
	}
	if backend.Deadline == nil || !backend.Deadline.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected deadline %v", backend.Deadline)
	}
	if jobs[1].Spec.Education != types.EducationPhD || jobs[1].Deadline != nil {
		t.Errorf("unexpected second job %+v", jobs[1])
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":        `[[jobs]] id = `,
		"missing id":    "[[jobs]]\ntitle = \"x\"",
		"missing title": "[[jobs]]\nid = \"x\"",
		"bad level":     "[[jobs]]\nid = \"x\"\ntitle = \"x\"\n[jobs.spec]\neducation = \"kindergarten\"",
		"bad deadline":  "[[jobs]]\nid = \"x\"\ntitle = \"x\"\ndeadline = \"next week\"",
		"duplicate":     "[[jobs]]\nid = \"x\"\ntitle = \"a\"\n[[jobs]]\nid = \"x\"\ntitle = \"b\"",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			if !errors.IsType(err, errors.ErrorTypeValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.toml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	saver := &memorySaver{}
	n, err := Sync(context.Background(), path, saver, errors.Discard())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if n != 2 || saver.get("backend-go") == nil || saver.get("ml-research") == nil {
		t.Errorf("unexpected sync result n=%d jobs=%v", n, saver.jobs)
	}

	_, err = Sync(context.Background(), filepath.Join(t.TempDir(), "missing.toml"), saver, nil)
	if errors.CodeOf(err) != errors.ErrCodeFileNotFound {
		t.Errorf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.toml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan struct{}, 1)
	onChange := func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}
	w := NewWatcher(path, 20*time.Millisecond, onChange, errors.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before touching the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(sampleCatalog+"\n# edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Error("expected reload after file change")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
