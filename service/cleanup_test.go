package service

import (
	"context"
	"testing"

	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearTestData(t *testing.T) {
	p := newPipeline(t, &fakeLLM{})
	ctx := context.Background()
	cleanup := NewCleanupService(p.db, p.store)

	testProject, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "QS1-run_7 tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)
	otherProject, err := p.analysis.StartAnalysis(ctx, UploadFile{Name: "QS1-run77 tender.txt", Data: []byte("招标公告")}, pipelineBids)
	require.NoError(t, err)
	project, err := p.db.GetProject(ctx, testProject)
	require.NoError(t, err)

	count, err := cleanup.ClearTestData(ctx, "run_7")
	require.NoError(t, err)
	assert.Zero(t, count, "projects in progress are kept")

	p.drain()

	count, err = cleanup.ClearTestData(ctx, "run_7")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	deleted, err := p.db.GetProject(ctx, testProject)
	require.NoError(t, err)
	assert.Nil(t, deleted)
	_, err = p.store.Open(ctx, project.TenderFileKey)
	assert.ErrorIs(t, err, storage.ErrFileNotFound)

	kept, err := p.db.GetProject(ctx, otherProject)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}
