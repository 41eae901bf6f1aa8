package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bryanwahyu/medreport-ai/internal/application"
	"github.com/bryanwahyu/medreport-ai/internal/domain/ai"
	domain "github.com/bryanwahyu/medreport-ai/internal/domain/analysis"
	"github.com/bryanwahyu/medreport-ai/internal/infra/ai/prompt"
)

// Service implements the analysis use case: validate the submission, extract
// content from each file, compose the prompt, and run the resilient remote
// call. It holds no per-request state and is safe for concurrent use; each
// request owns its own files and attempt counter.
type Service struct {
	Extractor *Extractor
	Invoker   *Invoker
	Clock     application.Clock
	Tier      ai.Tier

	log      *slog.Logger
	validate *validator.Validate
}

func NewService(extractor *Extractor, invoker *Invoker, clock application.Clock, tier ai.Tier, log *slog.Logger) *Service {
	if tier == "" {
		tier = ai.TierFast
	}
	return &Service{
		Extractor: extractor,
		Invoker:   invoker,
		Clock:     clock,
		Tier:      tier,
		log:       log,
		validate:  validator.New(),
	}
}

// Analyze runs the full pipeline for one submission. Validation failures
// short-circuit before any remote call.
func (s *Service) Analyze(ctx context.Context, sub domain.Submission) (*domain.AnalysisResult, *domain.Error) {
	if verr := s.validateSubmission(sub); verr != nil {
		return nil, verr
	}

	extraction := s.Extractor.ExtractAll(sub.Files)
	s.log.Info("extraction complete",
		"uploaded", len(sub.Files),
		"processed", len(extraction.Files),
		"images", extraction.ImageCount())

	p := prompt.Compose(sub, extraction.Files, extraction.CombinedText)

	text, ierr := s.Invoker.Invoke(ctx, s.Tier, p.Text, p.Attachments)
	if ierr != nil {
		return nil, ierr
	}

	return &domain.AnalysisResult{
		AnalysisText:  text,
		Timestamp:     s.Clock.Now(),
		PatientName:   sub.Patient.Name,
		FilesUploaded: len(sub.Files),
		FilesAnalyzed: extraction.ImageCount(),
	}, nil
}

func (s *Service) validateSubmission(sub domain.Submission) *domain.Error {
	if len(sub.Files) == 0 {
		return domain.NewValidationError("at least one report file is required")
	}
	if strings.TrimSpace(sub.Patient.Name) == "" {
		return domain.NewValidationError("patient name is required")
	}
	if err := s.validate.Struct(sub.Patient); err != nil {
		return domain.NewValidationError(fmt.Sprintf("invalid patient info: %v", err))
	}
	if sub.Location != nil {
		if err := s.validate.Struct(sub.Location); err != nil {
			return domain.NewValidationError(fmt.Sprintf("invalid location: %v", err))
		}
	}
	return nil
}
