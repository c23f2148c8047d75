package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
)

func TestAssignmentServiceLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := NewAssignmentService(f.assignments, newValidator(), f.activityService(), testLogger())
	ctx := context.Background()
	actor := ActivityActor{Name: "admin"}

	created, err := svc.Create(ctx, dto.AssignmentCreateRequest{Name: " calculator ", Description: "Four functions"}, actor)
	require.NoError(t, err)
	require.Equal(t, "calculator", created.Name)
	require.True(t, created.IsActive)

	_, err = svc.Create(ctx, dto.AssignmentCreateRequest{Name: "calculator"}, actor)
	require.ErrorIs(t, err, ErrAssignmentConflict)

	_, err = svc.Create(ctx, dto.AssignmentCreateRequest{}, actor)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAssignmentConflict)

	voting, err := svc.Create(ctx, dto.AssignmentCreateRequest{Name: "voting"}, actor)
	require.NoError(t, err)

	toggled, err := svc.Toggle(ctx, voting.ID, actor)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "calculator", active[0].Name)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	instructions := "Handle division by zero."
	updated, err := svc.Update(ctx, created.ID, dto.AssignmentUpdateRequest{Instructions: &instructions}, actor)
	require.NoError(t, err)
	require.Equal(t, instructions, updated.Instructions)

	taken := "voting"
	_, err = svc.Update(ctx, created.ID, dto.AssignmentUpdateRequest{Name: &taken}, actor)
	require.ErrorIs(t, err, ErrAssignmentConflict)

	_, err = svc.Get(ctx, 404)
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	var count int64
	require.NoError(t, f.db.Table("activity_logs").Where("entity_type = ?", "assignment").Count(&count).Error)
	require.Equal(t, int64(4), count)
}

func TestAssignmentServiceDeleteBlockedBySubmissions(t *testing.T) {
	f := newFixture(t)
	svc := NewAssignmentService(f.assignments, newValidator(), nil, testLogger())
	ctx := context.Background()

	calculator, err := svc.Create(ctx, dto.AssignmentCreateRequest{Name: "calculator"}, SystemActor)
	require.NoError(t, err)
	unused, err := svc.Create(ctx, dto.AssignmentCreateRequest{Name: "unused"}, SystemActor)
	require.NoError(t, err)

	f.submission(t, f.student(t, "A1"), "calculator", calculatorSource, time.Now().UTC())

	detail, err := svc.Get(ctx, calculator.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.SubmissionCount)
	require.Equal(t, int64(1), *detail.SubmissionCount)

	require.ErrorIs(t, svc.Delete(ctx, calculator.ID, SystemActor), ErrAssignmentHasSubmissions)
	require.NoError(t, svc.Delete(ctx, unused.ID, SystemActor))
	require.ErrorIs(t, svc.Delete(ctx, unused.ID, SystemActor), ErrAssignmentNotFound)
}
