package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-nwbconv/hdf5"
	"github.com/robert-malhotra/go-nwbconv/internal/job"
)

func TestWatchRerunsOnChange(t *testing.T) {
	old := debounce
	debounce = 20 * time.Millisecond
	defer func() { debounce = old }()

	path := filepath.Join(t.TempDir(), "metadata.yml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runs := make(chan int, 10)
	n := 0
	done := make(chan error, 1)
	a := newApp(&bytes.Buffer{})
	go func() {
		done <- a.watch(ctx, []string{path}, func(context.Context) error {
			n++
			runs <- n
			return errors.New("failures are logged, not returned")
		})
	}()

	select {
	case got := <-runs:
		assert.Equal(t, 1, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial run")
	}

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o644))
	select {
	case got := <-runs:
		assert.Equal(t, 2, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no run after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchNeedsFiles(t *testing.T) {
	err := newApp(&bytes.Buffer{}).watch(context.Background(), nil, func(context.Context) error { return nil })
	assert.Error(t, err)
}

// labIn returns the lab stored in an NWB file, or "" while the file is
// missing or being written.
func labIn(path string) string {
	f, err := hdf5.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	d, err := f.OpenDataset("general/lab")
	if err != nil {
		return ""
	}
	a, err := d.Read()
	if err != nil {
		return ""
	}
	s, _ := a.Value().(string)
	return s
}

func TestWatchConvertReplacesOutput(t *testing.T) {
	old := debounce
	debounce = 20 * time.Millisecond
	defer func() { debounce = old }()

	dir := t.TempDir()
	md := filepath.Join(dir, "metadata.yml")
	writeLab := func(lab string) {
		require.NoError(t, os.WriteFile(md,
			[]byte("NWBFile:\n  session_start_time: 2024-01-01T10:00:00Z\n  lab: "+lab+"\n"), 0o644))
	}
	writeLab("Smith")
	out := filepath.Join(dir, "session.nwb")
	args := []string{"nwbconv", "convert",
		"--type", "BinaryRecording",
		"--source", "file_path="+writeRecording(t, dir),
		"--source", "num_channels=4",
		"--source", "sampling_frequency=1000",
		"--metadata", md,
		"--output", out,
		"--watch",
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- newApp(&bytes.Buffer{}).command().Run(ctx, args)
	}()

	require.Eventually(t, func() bool { return labIn(out) == "Smith" }, 5*time.Second, 20*time.Millisecond)

	writeLab("Jones")
	assert.Eventually(t, func() bool { return labIn(out) == "Jones" }, 5*time.Second, 20*time.Millisecond,
		"the second run replaces the first output")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestOverwritingLoader(t *testing.T) {
	load := overwriting(func() (*job.Job, error) { return &job.Job{Output: "x.nwb"}, nil })
	j, err := load()
	require.NoError(t, err)
	assert.True(t, j.Overwrite)

	_, err = overwriting(func() (*job.Job, error) { return nil, errors.New("bad job") })()
	assert.ErrorContains(t, err, "bad job")
}
