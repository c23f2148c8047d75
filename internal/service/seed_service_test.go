package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
)

func TestGenerateStudentCodes(t *testing.T) {
	require.Equal(t, []string{"STU001", "STU002", "STU003"}, GenerateStudentCodes("STU", 1, 3))
	require.Equal(t, []string{"CS1000"}, GenerateStudentCodes("CS", 1000, 1))
	require.Empty(t, GenerateStudentCodes("CS", 1, 0))
}

func TestSeedStudentsSkipsExistingCodes(t *testing.T) {
	f := newFixture(t)
	svc := NewSeedService(f.students, newValidator(), f.activityService(), f.events, testLogger())
	ctx := context.Background()

	f.student(t, "STU002")

	result, err := svc.SeedStudents(ctx, dto.StudentSeedRequest{Prefix: " stu ", Start: 1, Count: 3, Block: models.BlockSix}, CLIActor)
	require.NoError(t, err)
	require.Equal(t, 3, result.Requested)
	require.Equal(t, int64(2), result.Created)
	require.Equal(t, []string{"STU001", "STU002", "STU003"}, result.Codes)

	seeded, err := f.students.GetByCode(ctx, "STU003")
	require.NoError(t, err)
	require.Equal(t, "STU003", seeded.Name)
	require.Equal(t, models.BlockSix, seeded.Block)
	require.False(t, seeded.IsApproved)
	require.True(t, seeded.IsActive)

	existing, err := f.students.GetByCode(ctx, "STU002")
	require.NoError(t, err)
	require.Equal(t, "Student STU002", existing.Name)

	require.Equal(t, []string{dto.EventRosterImported}, f.events.types())
}

func TestSeedStudentsValidates(t *testing.T) {
	f := newFixture(t)
	svc := NewSeedService(f.students, newValidator(), nil, nil, testLogger())

	for name, req := range map[string]dto.StudentSeedRequest{
		"missing prefix": {Count: 2, Block: models.BlockFour},
		"bad prefix":     {Prefix: "S-1", Count: 2, Block: models.BlockFour},
		"zero count":     {Prefix: "S", Block: models.BlockFour},
		"bad block":      {Prefix: "S", Count: 2, Block: 5},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SeedStudents(context.Background(), req, SystemActor)
			require.Error(t, err)
		})
	}
}
