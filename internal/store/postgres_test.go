package store

import (
	"context"
	"os"
	"testing"

	"callscreen/internal/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("CALLSCREEN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CALLSCREEN_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIntegration_PostgresApplicationLifecycle(t *testing.T) {
	s := getTestPostgres(t)
	ctx := context.Background()

	job := testJob()
	require.NoError(t, s.SaveJob(ctx, job))
	defer func() { _ = s.DeleteJob(ctx, job.ID) }()

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Spec.Skills, got.Spec.Skills)

	applicant := &types.Applicant{
		FirstName: "Test",
		LastName:  "Candidate",
		Email:     uuid.NewString() + "@example.com",
		Phone:     "+1",
	}
	require.NoError(t, s.UpsertApplicant(ctx, applicant))

	app := &types.Application{ApplicantID: applicant.ID, JobID: job.ID, ResumeName: "cv.pdf", Resume: []byte("%PDF-")}
	require.NoError(t, s.CreateApplication(ctx, app))
	require.NoError(t, s.RecordScore(ctx, app.ID, 12.5, types.StatusRejected))

	listed, err := s.ListApplications(ctx, ApplicationFilter{JobID: job.ID, Status: types.StatusRejected})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Score)
	assert.Equal(t, 12.5, *listed[0].Score)

	_, err = s.GetApplication(ctx, uuid.NewString())
	assert.True(t, IsNotFound(err))
}
