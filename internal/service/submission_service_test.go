package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/models"
)

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

func newSubmissionFixture(t *testing.T, maxBytes int64) (*fixture, SubmissionService) {
	t.Helper()
	f := newFixture(t)
	f.student(t, "S1")
	require.NoError(t, f.db.Create(&models.Assignment{Name: "calculator", IsActive: true}).Error)
	inactive := models.Assignment{Name: "archived", IsActive: true}
	require.NoError(t, f.db.Create(&inactive).Error)
	require.NoError(t, f.db.Model(&inactive).Update("is_active", false).Error)

	svc := NewSubmissionService(f.submissions, f.students, f.assignments, f.history(), f.events, newValidator(), maxBytes, testLogger())
	return f, svc
}

func TestUploadPastedCode(t *testing.T) {
	f, svc := newSubmissionFixture(t, 1<<20)

	submission, err := svc.Upload(context.Background(), dto.UploadSubmissionRequest{
		StudentCode:    "S1",
		AssignmentName: "calculator",
		CodePaste:      calculatorSource,
	}, nil)
	require.NoError(t, err)

	require.Equal(t, "pasted_code_S1_calculator.txt", submission.FileName)
	require.Equal(t, models.SubmissionSourcePaste, submission.Source)
	require.Len(t, submission.Checksum, 64)
	require.NotNil(t, submission.AssignmentID)
	require.Equal(t, []string{dto.EventSubmissionCreated}, f.events.types())

	stored, err := svc.Get(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, calculatorSource, stored.FileContent)
}

func TestUploadFileSupersedesPreviousSubmission(t *testing.T) {
	f, svc := newSubmissionFixture(t, 1<<20)
	ctx := context.Background()
	req := dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "calculator"}

	first, err := svc.Upload(ctx, req, multipartFile(t, "v1.py", []byte("print('v1')\n")))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, req, multipartFile(t, "../v2.py", []byte("print('v2')\n")))
	require.NoError(t, err)

	require.Equal(t, "v2.py", second.FileName)
	require.Equal(t, models.SubmissionSourceUpload, second.Source)

	_, err = svc.Get(ctx, first.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	var count int64
	require.NoError(t, f.db.Model(&models.Submission{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUploadRejections(t *testing.T) {
	cases := []struct {
		name string
		req  dto.UploadSubmissionRequest
		file func(t *testing.T) *multipart.FileHeader
		want error
	}{
		{name: "unknown student", req: dto.UploadSubmissionRequest{StudentCode: "nobody", AssignmentName: "calculator", CodePaste: "x = 1"}, want: ErrStudentNotFound},
		{name: "unknown assignment", req: dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "missing", CodePaste: "x = 1"}, want: ErrAssignmentNotFound},
		{name: "inactive assignment", req: dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "archived", CodePaste: "x = 1"}, want: ErrAssignmentNotFound},
		{name: "no content", req: dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "calculator"}, want: ErrNoContent},
		{
			name: "both file and paste",
			req:  dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "calculator", CodePaste: "x = 1"},
			file: func(t *testing.T) *multipart.FileHeader { return multipartFile(t, "a.py", []byte("x = 2")) },
			want: ErrNoContent,
		},
		{
			name: "binary file",
			req:  dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "calculator"},
			file: func(t *testing.T) *multipart.FileHeader {
				return multipartFile(t, "image.png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0xff, 0xfe, 0x00})
			},
			want: ErrUnsupportedContent,
		},
		{name: "too large", req: dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "calculator", CodePaste: "print('this line is longer than the limit')"}, want: ErrUploadTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, svc := newSubmissionFixture(t, 32)
			var file *multipart.FileHeader
			if tc.file != nil {
				file = tc.file(t)
			}
			_, err := svc.Upload(context.Background(), tc.req, file)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUploadRejectsInactiveStudent(t *testing.T) {
	f, svc := newSubmissionFixture(t, 1<<20)
	require.NoError(t, f.db.Model(&models.Student{}).Where("student_code = ?", "S1").Update("is_active", false).Error)

	_, err := svc.Upload(context.Background(), dto.UploadSubmissionRequest{StudentCode: "S1", AssignmentName: "calculator", CodePaste: "x = 1"}, nil)
	require.ErrorIs(t, err, ErrStudentInactive)
}
