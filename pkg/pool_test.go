package cashier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashManager(t *testing.T) {
	alg := mustAlgorithm(t, "sha1")
	dir := t.TempDir()
	counters := &runCounters{}

	manager := newHashManager(context.Background(), 3, alg, 16, counters)
	defer manager.Shutdown()

	var done sync.WaitGroup
	var jobs []*hashJob
	for i := 0; i < 20; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%02d", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("content %d", i)), 0644))
		job := &hashJob{node: NewFileNode(path, 0, ""), done: &done}
		done.Add(1)
		jobs = append(jobs, job)
		manager.Submit(job)
	}
	missing := &hashJob{node: NewFileNode(filepath.Join(dir, "missing"), 0, ""), done: &done}
	done.Add(1)
	manager.Submit(missing)
	done.Wait()

	for i, job := range jobs {
		require.NoError(t, job.err)
		assert.Equal(t, alg.HashString(fmt.Sprintf("content %d", i)), job.node.Digest())
	}
	assert.Error(t, missing.err)
	assert.True(t, missing.node.Digest().IsZero())
	assert.Equal(t, int64(20), counters.filesHashed.Load())
}

func TestHashManagerCancelled(t *testing.T) {
	alg := mustAlgorithm(t, "sha1")
	ctx, cancel := context.WithCancel(context.Background())
	manager := newHashManager(ctx, 1, alg, 0, &runCounters{})
	cancel()

	var done sync.WaitGroup
	job := &hashJob{node: NewFileNode(filepath.Join(t.TempDir(), "x"), 0, ""), done: &done}
	done.Add(1)
	manager.Submit(job)
	done.Wait()

	assert.Error(t, job.err)
	manager.Shutdown()
	manager.Shutdown()
}
