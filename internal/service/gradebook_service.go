package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
)

type gradebookAssignments interface {
	ListByClass(ctx context.Context, classID string) ([]models.Assignment, error)
}

type gradebookRoster interface {
	ListByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

type gradebookSubmissions interface {
	ListByClass(ctx context.Context, classID string) ([]models.Submission, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

var gradebookHeaders = []string{"Student", "Email", "Assignment", "Due", "Status", "Late", "Grade", "Points"}

// GradebookDocument is a rendered gradebook ready to stream.
type GradebookDocument struct {
	Filename    string
	ContentType string
	Body        []byte
}

// GradebookService renders a class gradebook with one row per student and
// assignment.
type GradebookService struct {
	classes     classLookup
	assignments gradebookAssignments
	roster      gradebookRoster
	submissions gradebookSubmissions
	csv         datasetRenderer
	pdf         datasetRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewGradebookService constructs GradebookService. Nil renderers fall back to
// the default exporters.
func NewGradebookService(classes classLookup, assignments gradebookAssignments, roster gradebookRoster, submissions gradebookSubmissions, csv, pdf datasetRenderer, logger *zap.Logger) *GradebookService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{
		classes:     classes,
		assignments: assignments,
		roster:      roster,
		submissions: submissions,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Export renders the gradebook of classID in the requested format.
func (s *GradebookService) Export(ctx context.Context, actor *models.JWTClaims, classID, format string) (*GradebookDocument, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	class, err := loadClass(ctx, s.classes, classID)
	if err != nil {
		return nil, err
	}
	if err := requireClassManager(actor, class); err != nil {
		return nil, err
	}

	dataset, err := s.Dataset(ctx, class)
	if err != nil {
		return nil, err
	}

	renderer := s.csv
	if f == export.FormatPDF {
		renderer = s.pdf
	}
	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render gradebook")
	}
	s.logger.Info("gradebook exported",
		zap.String("class_id", class.ID),
		zap.String("format", string(f)),
		zap.Int("rows", len(dataset.Rows)),
		zap.String("actor_id", actor.UserID),
	)
	return &GradebookDocument{
		Filename:    fmt.Sprintf("gradebook-%s-%s.%s", slug(class.Name), s.now().Format("20060102"), f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

// Dataset builds the gradebook rows ordered by student name then due date.
func (s *GradebookService) Dataset(ctx context.Context, class *models.ClassDetail) (export.Dataset, error) {
	assignments, err := s.assignments.ListByClass(ctx, class.ID)
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to list assignments")
	}
	students, err := s.roster.ListByClass(ctx, class.ID)
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to list enrollments")
	}
	subs, err := s.submissions.ListByClass(ctx, class.ID)
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to list submissions")
	}

	byKey := make(map[string]models.Submission, len(subs))
	for _, sub := range subs {
		byKey[sub.AssignmentID+"/"+sub.StudentID] = sub
	}
	sort.SliceStable(assignments, func(i, j int) bool { return assignments[i].DueDate.Before(assignments[j].DueDate) })
	sort.SliceStable(students, func(i, j int) bool { return students[i].StudentName < students[j].StudentName })

	now := s.now()
	rows := make([]map[string]string, 0, len(students)*len(assignments))
	for _, st := range students {
		for _, a := range assignments {
			var sub *models.Submission
			if row, ok := byKey[a.ID+"/"+st.StudentID]; ok {
				sub = &row
			}
			progress := DeriveAssignmentStatus(a, sub, now)
			grade := ""
			if sub != nil && sub.Grade != nil {
				grade = strconv.FormatFloat(*sub.Grade, 'f', -1, 64)
			}
			rows = append(rows, map[string]string{
				"Student":    st.StudentName,
				"Email":      st.StudentEmail,
				"Assignment": a.Title,
				"Due":        a.DueDate.Format("2006-01-02 15:04"),
				"Status":     string(progress.Status),
				"Late":       strconv.FormatBool(progress.IsLate),
				"Grade":      grade,
				"Points":     strconv.Itoa(a.Points),
			})
		}
	}
	return export.Dataset{
		Title:   "Gradebook: " + class.Name,
		Headers: gradebookHeaders,
		Rows:    rows,
	}, nil
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "class"
	}
	return out
}
