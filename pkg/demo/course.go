package demo

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/vstore/pkg/store"
	"github.com/vango-dev/vstore/pkg/validate"
)

// CourseRequest is the payload of the course request form.
type CourseRequest struct {
	CourseTitle      string `json:"courseTitle" validate:"required,min=3"`
	CourseCategory   string `json:"courseCategory" validate:"required"`
	Description      string `json:"description,omitempty"`
	ReasonForRequest string `json:"reasonForRequest" validate:"required,min=10"`
	Email            string `json:"email" validate:"required,email"`
}

// CourseResult is the outcome of Submit.
type CourseResult struct {
	Result
	RequestID string `json:"requestId,omitempty"`
}

// SubmittedRequest records a course request that was mailed.
type SubmittedRequest struct {
	ID          string    `json:"id"`
	CourseTitle string    `json:"courseTitle"`
	Email       string    `json:"email"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// CourseRequestsState is the state of the course request store.
type CourseRequestsState struct {
	Submitted []SubmittedRequest `json:"submitted"`
}

// CourseRequests mails course requests to an administrator.
type CourseRequests struct {
	*store.Store[CourseRequestsState]

	mailer Mailer
	from   string
	to     string
	logger *slog.Logger
	now    func() time.Time
}

// CourseRequestsConfig configures NewCourseRequests.
type CourseRequestsConfig struct {
	Mailer Mailer
	From   string
	To     string
	Logger *slog.Logger
	Now    func() time.Time
}

// NewCourseRequests creates the course request store.
// A nil Mailer logs requests instead of sending them.
func NewCourseRequests(cfg CourseRequestsConfig, storeOpts ...store.Option) *CourseRequests {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "courses")
	}
	if cfg.Mailer == nil {
		cfg.Mailer = LogMailer{Logger: cfg.Logger}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	storeOpts = append([]store.Option{store.WithName("courses")}, storeOpts...)
	return &CourseRequests{
		Store:  store.New(CourseRequestsState{Submitted: []SubmittedRequest{}}, storeOpts...),
		mailer: cfg.Mailer,
		from:   cfg.From,
		to:     cfg.To,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

var courseMail = template.Must(template.New("course").Parse(`
<h1>New Course Request</h1>
<p><strong>Course Title:</strong> {{.CourseTitle}}</p>
<p><strong>Category:</strong> {{.CourseCategory}}</p>
{{- if .Description}}
<p><strong>Description:</strong> {{.Description}}</p>
{{- end}}
<p><strong>Reason for Request:</strong> {{.ReasonForRequest}}</p>
<p><strong>Student Email:</strong> {{.Email}}</p>
<hr />
<p>This request was submitted through your course request form.</p>
`))

// Submit validates req and mails it. Delivery failures are logged and
// reported with a generic message.
func (c *CourseRequests) Submit(ctx context.Context, req CourseRequest) CourseResult {
	if errs := validate.Struct(req); errs != nil {
		return CourseResult{Result: failed(errs)}
	}

	var body bytes.Buffer
	if err := courseMail.Execute(&body, req); err != nil {
		c.logger.Error("render course request", "error", err)
		return CourseResult{Result: Result{Error: "Failed to send email"}}
	}

	id := uuid.NewString()
	err := c.mailer.Send(ctx, Message{
		From:    c.from,
		To:      c.to,
		Subject: "New Course Request: " + req.CourseTitle,
		HTML:    body.String(),
	})
	if err != nil {
		c.logger.Error("failed to send email", "request_id", id, "error", err)
		return CourseResult{Result: Result{Error: "Failed to send email"}}
	}

	entry := SubmittedRequest{
		ID:          id,
		CourseTitle: req.CourseTitle,
		Email:       req.Email,
		SubmittedAt: c.now(),
	}
	c.Set(func(s *CourseRequestsState) {
		s.Submitted = append(slices.Clone(s.Submitted), entry)
	})
	return CourseResult{Result: ok(), RequestID: id}
}
